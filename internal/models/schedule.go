package models

import (
	"fmt"
	"strings"
	"time"
)

// Schedule describes one recurrence pattern for a medication. Recurrence is
// the free-text label shown to the user ("Twice daily", "Every Mon/Wed");
// the machine-readable parts are the window, day set and timezone.
type Schedule struct {
	ID              string     `json:"id"`
	MedicationID    string     `json:"medication_id"`
	Recurrence      string     `json:"schedule"`
	FrequencyPerDay *int       `json:"frequency_per_day,omitempty"`
	IsForever       bool       `json:"is_forever"`
	StartDate       *int64     `json:"start_date,omitempty"`
	EndDate         *int64     `json:"end_date,omitempty"`
	DaysOfWeek      WeekdaySet `json:"days_of_week,omitempty"`
	Timezone        string     `json:"timezone"`
	ReminderEnabled bool       `json:"reminder_enabled"`
}

// Location resolves the schedule's IANA timezone.
func (s *Schedule) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

type CreateScheduleRequest struct {
	Recurrence      string   `json:"schedule" validate:"required,min=1,max=255"`
	FrequencyPerDay *int     `json:"frequency_per_day" validate:"omitempty,min=1,max=48"`
	IsForever       bool     `json:"is_forever"`
	StartDate       *int64   `json:"start_date"`
	EndDate         *int64   `json:"end_date"`
	DaysOfWeek      []string `json:"days_of_week" validate:"omitempty,max=7,dive,oneof=MON TUE WED THU FRI SAT SUN"`
	Timezone        string   `json:"timezone" validate:"required,min=1,max=64"`
	ReminderEnabled *bool    `json:"reminder_enabled"`
}

type UpdateScheduleRequest struct {
	Recurrence      *string   `json:"schedule" validate:"omitempty,min=1,max=255"`
	FrequencyPerDay *int      `json:"frequency_per_day" validate:"omitempty,min=1,max=48"`
	IsForever       *bool     `json:"is_forever"`
	StartDate       *int64    `json:"start_date"`
	EndDate         *int64    `json:"end_date"`
	DaysOfWeek      *[]string `json:"days_of_week" validate:"omitempty,max=7,dive,oneof=MON TUE WED THU FRI SAT SUN"`
	Timezone        *string   `json:"timezone" validate:"omitempty,min=1,max=64"`
	ReminderEnabled *bool     `json:"reminder_enabled"`
}

// WeekdaySet is the ordered set of weekday codes a schedule is active on.
// Empty means every day.
type WeekdaySet []string

var weekdayCodes = map[string]time.Weekday{
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
	"SUN": time.Sunday,
}

// ParseWeekdaySet parses the stored comma-separated form ("MON,WED,FRI").
// Blank input yields an empty set. Codes must be the three-letter English
// abbreviations; anything else (including numeric days) is rejected.
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	set := make(WeekdaySet, 0, len(parts))
	for _, p := range parts {
		code := strings.ToUpper(strings.TrimSpace(p))
		if _, ok := weekdayCodes[code]; !ok {
			return nil, fmt.Errorf("unknown weekday code %q", p)
		}
		set = append(set, code)
	}
	return set, nil
}

// NewWeekdaySet validates and normalizes a slice of codes from a request.
func NewWeekdaySet(codes []string) (WeekdaySet, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return ParseWeekdaySet(strings.Join(codes, ","))
}

// String renders the stored comma-separated form.
func (ws WeekdaySet) String() string {
	return strings.Join(ws, ",")
}

// Contains reports whether the set allows the given weekday. An empty set
// allows all days; codes that are not real weekdays match nothing.
func (ws WeekdaySet) Contains(d time.Weekday) bool {
	if len(ws) == 0 {
		return true
	}
	for _, code := range ws {
		if wd, ok := weekdayCodes[code]; ok && wd == d {
			return true
		}
	}
	return false
}
