package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
)

func validateSchedule(sc *models.Schedule) error {
	if strings.TrimSpace(sc.Recurrence) == "" {
		return validationErr("schedule", "required")
	}
	if sc.FrequencyPerDay != nil && *sc.FrequencyPerDay < 1 {
		return validationErr("frequency_per_day", "must be at least 1")
	}
	if strings.TrimSpace(sc.Timezone) == "" {
		return validationErr("timezone", "required")
	}
	if _, err := time.LoadLocation(sc.Timezone); err != nil {
		return validationErr("timezone", fmt.Sprintf("unknown IANA timezone %q", sc.Timezone))
	}
	if _, err := models.ParseWeekdaySet(sc.DaysOfWeek.String()); err != nil {
		return validationErr("days_of_week", err.Error())
	}
	// A forever schedule cannot carry an end date.
	if sc.IsForever && sc.EndDate != nil {
		return validationErr("end_date", "must be empty when is_forever is set")
	}
	return nil
}

// CreateSchedule inserts a schedule under an existing medication.
func (s *Store) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	return s.createSchedule(ctx, s.db, sc)
}

func (s *Store) createSchedule(ctx context.Context, q dbtx, sc *models.Schedule) error {
	if err := validateSchedule(sc); err != nil {
		return err
	}

	var count int
	if err := q.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medications WHERE id = ?"), sc.MedicationID).Scan(&count); err != nil {
		return fmt.Errorf("check medication: %w", err)
	}
	if count == 0 {
		return notFoundErr("medication", sc.MedicationID)
	}

	if sc.ID == "" {
		sc.ID = newID()
	}

	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO medication_schedules
			(id, medication_id, schedule, frequency_per_day, is_forever, start_date, end_date, days_of_week, timezone, reminder_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sc.ID, sc.MedicationID, sc.Recurrence, sc.FrequencyPerDay, sc.IsForever,
		sc.StartDate, sc.EndDate, sc.DaysOfWeek.String(), sc.Timezone, sc.ReminderEnabled)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

const scheduleColumns = `id, medication_id, schedule, frequency_per_day, is_forever, start_date, end_date, days_of_week, timezone, reminder_enabled`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var sc models.Schedule
	var days string
	err := row.Scan(&sc.ID, &sc.MedicationID, &sc.Recurrence, &sc.FrequencyPerDay, &sc.IsForever,
		&sc.StartDate, &sc.EndDate, &days, &sc.Timezone, &sc.ReminderEnabled)
	if err != nil {
		return nil, err
	}
	set, err := models.ParseWeekdaySet(days)
	if err != nil {
		return nil, fmt.Errorf("stored days_of_week: %w", err)
	}
	sc.DaysOfWeek = set
	return &sc, nil
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+scheduleColumns+" FROM medication_schedules WHERE id = ?"), id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("schedule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select schedule: %w", err)
	}
	return sc, nil
}

func (s *Store) ListSchedulesByMedication(ctx context.Context, medicationID string) ([]models.Schedule, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medications WHERE id = ?"), medicationID).Scan(&count); err != nil {
		return nil, fmt.Errorf("check medication: %w", err)
	}
	if count == 0 {
		return nil, notFoundErr("medication", medicationID)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+scheduleColumns+" FROM medication_schedules WHERE medication_id = ? ORDER BY id"), medicationID)
	if err != nil {
		return nil, fmt.Errorf("select schedules: %w", err)
	}
	defer rows.Close()

	schedules := []models.Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

// ListSchedules returns every schedule in the store. Used by the boot and
// resync re-arm pass.
func (s *Store) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM medication_schedules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("select schedules: %w", err)
	}
	defer rows.Close()

	schedules := []models.Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

// UpdateSchedule merges the partial update onto the stored row, re-checks
// the schedule rules on the result, and writes every mutable column. The
// medication FK is immutable.
func (s *Store) UpdateSchedule(ctx context.Context, id string, req *models.UpdateScheduleRequest) (*models.Schedule, error) {
	sc, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Recurrence != nil {
		sc.Recurrence = *req.Recurrence
	}
	if req.FrequencyPerDay != nil {
		sc.FrequencyPerDay = req.FrequencyPerDay
	}
	if req.IsForever != nil {
		sc.IsForever = *req.IsForever
		if sc.IsForever {
			sc.EndDate = nil
		}
	}
	if req.StartDate != nil {
		sc.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		sc.EndDate = req.EndDate
	}
	if req.DaysOfWeek != nil {
		set, err := models.NewWeekdaySet(*req.DaysOfWeek)
		if err != nil {
			return nil, validationErr("days_of_week", err.Error())
		}
		sc.DaysOfWeek = set
	}
	if req.Timezone != nil {
		sc.Timezone = *req.Timezone
	}
	if req.ReminderEnabled != nil {
		sc.ReminderEnabled = *req.ReminderEnabled
	}

	if err := validateSchedule(sc); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		UPDATE medication_schedules
		SET schedule = ?, frequency_per_day = ?, is_forever = ?, start_date = ?, end_date = ?,
		    days_of_week = ?, timezone = ?, reminder_enabled = ?
		WHERE id = ?`),
		sc.Recurrence, sc.FrequencyPerDay, sc.IsForever, sc.StartDate, sc.EndDate,
		sc.DaysOfWeek.String(), sc.Timezone, sc.ReminderEnabled, id)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return sc, nil
}

// DeleteSchedule removes the schedule, its dose times and their intake
// logs in one transaction, returning the removed dose time ids.
func (s *Store) DeleteSchedule(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete schedule: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medication_schedules WHERE id = ?"), id).Scan(&count); err != nil {
		return nil, fmt.Errorf("check schedule: %w", err)
	}
	if count == 0 {
		return nil, notFoundErr("schedule", id)
	}

	doseTimeIDs, err := collectIDs(ctx, tx, s.rebind(
		"SELECT id FROM medication_schedule_times WHERE schedule_id = ?"), id)
	if err != nil {
		return nil, err
	}

	steps := []string{
		`DELETE FROM medication_intake_logs WHERE schedule_time_id IN (
			SELECT id FROM medication_schedule_times WHERE schedule_id = ?)`,
		`DELETE FROM medication_schedule_times WHERE schedule_id = ?`,
		`DELETE FROM medication_schedules WHERE id = ?`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
			return nil, fmt.Errorf("delete schedule cascade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete schedule: %w", err)
	}
	return doseTimeIDs, nil
}

// ScheduleOwner resolves the owning user id by walking up to medications.
func (s *Store) ScheduleOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT m.user_id FROM medications m
		JOIN medication_schedules sc ON sc.medication_id = m.id
		WHERE sc.id = ?`), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFoundErr("schedule", id)
	}
	if err != nil {
		return "", fmt.Errorf("select schedule owner: %w", err)
	}
	return owner, nil
}
