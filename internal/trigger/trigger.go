// Package trigger computes the next reminder instant for a dose time. It
// is pure: no clock of its own, no IO, deterministic for a given now.
package trigger

import (
	"fmt"
	"time"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
)

// Next returns the next instant the dose time should fire, strictly after
// now. ok is false when nothing is upcoming: PRN dose times, an exhausted
// recurrence window, or a day-of-week set that matches nothing. A false ok
// with a nil error is a valid state, not a failure.
//
// The candidate starts at today's wall-clock HH:MM in the schedule's
// timezone, is clamped forward to the start date, advanced past now, then
// advanced to the next allowed weekday (at most a week), and finally
// checked against the end date. Start and end dates compare at date level
// in the schedule's timezone, so the end date itself still fires.
func Next(sc *models.Schedule, dt *models.DoseTime, now time.Time) (time.Time, bool, error) {
	if dt.PRN {
		return time.Time{}, false, nil
	}

	hour, minute, err := models.ParseClock(dt.TimeLocal)
	if err != nil {
		return time.Time{}, false, err
	}

	loc, err := sc.Location()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("timezone %q: %w", sc.Timezone, err)
	}

	local := now.In(loc)
	cand := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	if sc.StartDate != nil {
		start := time.UnixMilli(*sc.StartDate).In(loc)
		if dateBefore(cand, start) {
			cand = time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, loc)
		}
	}

	for !cand.After(now) {
		cand = cand.AddDate(0, 0, 1)
	}

	if len(sc.DaysOfWeek) > 0 {
		matched := false
		for i := 0; i < 7; i++ {
			if sc.DaysOfWeek.Contains(cand.Weekday()) {
				matched = true
				break
			}
			cand = cand.AddDate(0, 0, 1)
		}
		if !matched {
			return time.Time{}, false, nil
		}
	}

	if sc.EndDate != nil {
		end := time.UnixMilli(*sc.EndDate).In(loc)
		if dateBefore(end, cand) {
			return time.Time{}, false, nil
		}
	}

	return cand, true, nil
}

// NextMillis is Next in the persisted representation: epoch milliseconds,
// or nil when nothing is upcoming.
func NextMillis(sc *models.Schedule, dt *models.DoseTime, now time.Time) (*int64, error) {
	at, ok, err := Next(sc, dt, now)
	if err != nil || !ok {
		return nil, err
	}
	ms := at.UnixMilli()
	return &ms, nil
}

// dateBefore reports whether a's calendar date precedes b's. Both values
// must already be in the schedule's timezone.
func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
