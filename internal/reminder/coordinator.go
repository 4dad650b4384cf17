package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/trigger"
)

// Coordinator keeps three things consistent for every dose time: the
// persisted next_trigger_ts, the armed dispatcher reminder, and the
// schedule definition that produced them. Every schedule or dose time
// write goes through a recompute here.
type Coordinator struct {
	store *store.Store
	disp  Dispatcher
	notif Notifier
	log   zerolog.Logger
	now   func() time.Time
}

func NewCoordinator(st *store.Store, disp Dispatcher, notif Notifier, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store: st,
		disp:  disp,
		notif: notif,
		log:   log.With().Str("component", "reminders").Logger(),
		now:   time.Now,
	}
}

// Recompute runs the trigger computation for one dose time and persists
// the result, then syncs the dispatcher: armed when reminders are enabled
// and something is upcoming, cancelled otherwise. The persist happens
// first and is the source of truth; dispatcher failures are logged and
// swallowed so they can never fail the write that caused the recompute.
func (c *Coordinator) Recompute(ctx context.Context, sc *models.Schedule, dt *models.DoseTime) error {
	next, err := trigger.NextMillis(sc, dt, c.now())
	if err != nil {
		return fmt.Errorf("compute trigger for dose time %s: %w", dt.ID, err)
	}

	if err := c.store.SetNextTrigger(ctx, dt.ID, next); err != nil {
		return err
	}
	dt.NextTriggerTs = next

	if next == nil || !sc.ReminderEnabled {
		if err := c.disp.Cancel(dt.ID); err != nil {
			c.log.Warn().Err(err).Str("dose_time_id", dt.ID).Msg("cancel failed")
		}
		if next == nil && sc.ReminderEnabled && !dt.PRN {
			c.log.Warn().Str("schedule_id", sc.ID).Str("dose_time_id", dt.ID).
				Msg("schedule has no upcoming occurrence")
		}
		return nil
	}

	payload := Payload{MedicationID: sc.MedicationID, ScheduleID: sc.ID, DoseTimeID: dt.ID}
	if err := c.disp.Arm(dt.ID, *next, payload); err != nil {
		c.log.Warn().Err(err).Str("dose_time_id", dt.ID).Int64("fires_at", *next).Msg("arm failed")
	}
	return nil
}

// RecomputeSchedule refreshes every dose time under one schedule and
// returns them with their new triggers. Used after schedule-level edits,
// where the recurrence fields changed for all of them at once.
func (c *Coordinator) RecomputeSchedule(ctx context.Context, scheduleID string) ([]models.DoseTime, error) {
	sc, err := c.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	times, err := c.store.ListDoseTimesBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	for i := range times {
		if err := c.Recompute(ctx, sc, &times[i]); err != nil {
			return nil, err
		}
	}
	return times, nil
}

// CancelAll cancels armed reminders for dose times that no longer exist.
// Called after a cascade delete commits.
func (c *Coordinator) CancelAll(doseTimeIDs []string) {
	for _, id := range doseTimeIDs {
		if err := c.disp.Cancel(id); err != nil {
			c.log.Warn().Err(err).Str("dose_time_id", id).Msg("cancel failed")
		}
	}
}

// RearmAll walks every schedule and recomputes every dose time. Run at
// boot (in-process timers do not survive restarts) and periodically by the
// resync job to heal drift.
func (c *Coordinator) RearmAll(ctx context.Context) error {
	schedules, err := c.store.ListSchedules(ctx)
	if err != nil {
		return err
	}

	var armed, idle, failed int
	for i := range schedules {
		sc := &schedules[i]
		times, err := c.store.ListDoseTimesBySchedule(ctx, sc.ID)
		if err != nil {
			c.log.Warn().Err(err).Str("schedule_id", sc.ID).Msg("rearm: list dose times failed")
			failed++
			continue
		}
		for j := range times {
			dt := &times[j]
			if err := c.Recompute(ctx, sc, dt); err != nil {
				c.log.Warn().Err(err).Str("dose_time_id", dt.ID).Msg("rearm: recompute failed")
				failed++
				continue
			}
			if dt.NextTriggerTs != nil && sc.ReminderEnabled {
				armed++
			} else {
				idle++
			}
		}
	}

	c.log.Info().Int("armed", armed).Int("idle", idle).Int("failed", failed).Msg("rearm pass complete")
	return nil
}

// HandleFired is the dispatcher callback for an elapsed reminder: deliver
// the notification, then recompute so the following occurrence is armed.
// The entities may have been deleted between arming and firing; that is
// not an error, the reminder just evaporates.
func (c *Coordinator) HandleFired(reminderID string, payload Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dt, err := c.store.GetDoseTime(ctx, reminderID)
	if err != nil {
		if store.IsNotFound(err) {
			c.log.Debug().Str("dose_time_id", reminderID).Msg("fired for deleted dose time")
			return
		}
		c.log.Error().Err(err).Str("dose_time_id", reminderID).Msg("fired: load dose time failed")
		return
	}

	sc, err := c.store.GetSchedule(ctx, dt.ScheduleID)
	if err != nil {
		c.log.Error().Err(err).Str("schedule_id", dt.ScheduleID).Msg("fired: load schedule failed")
		return
	}

	med, err := c.store.GetMedication(ctx, sc.MedicationID)
	if err != nil {
		c.log.Error().Err(err).Str("medication_id", sc.MedicationID).Msg("fired: load medication failed")
		return
	}

	if sc.ReminderEnabled && c.notif != nil {
		n := Notification{
			UserID:     med.UserID,
			Medication: med.Name,
			Dose:       doseLine(dt),
			TimeLocal:  dt.TimeLocal,
			FiredAt:    c.now().UnixMilli(),
			Payload:    payload,
		}
		if err := c.notif.Send(ctx, n); err != nil {
			c.log.Warn().Err(err).Str("dose_time_id", dt.ID).Msg("notify failed")
		}
	}

	if err := c.Recompute(ctx, sc, dt); err != nil {
		c.log.Error().Err(err).Str("dose_time_id", dt.ID).Msg("fired: recompute failed")
	}
}

// doseLine renders a human dose summary, preferring the structured amount
// over the free-text dosage.
func doseLine(dt *models.DoseTime) string {
	if dt.DoseAmount != nil && dt.DoseUnit != nil {
		return fmt.Sprintf("%g %s", *dt.DoseAmount, *dt.DoseUnit)
	}
	if dt.Dosage != nil {
		return *dt.Dosage
	}
	return ""
}
