package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
)

func validateDoseTime(dt *models.DoseTime) error {
	if _, _, err := models.ParseClock(dt.TimeLocal); err != nil {
		return validationErr("time_local", err.Error())
	}
	if dt.SortOrder < 0 {
		return validationErr("sort_order", "must not be negative")
	}
	if dt.DoseAmount != nil && *dt.DoseAmount <= 0 {
		return validationErr("dose_amount", "must be positive")
	}
	return nil
}

// CreateDoseTime inserts a dose time under an existing schedule. The
// trigger is not computed here; the reminder coordinator does that after
// the write.
func (s *Store) CreateDoseTime(ctx context.Context, dt *models.DoseTime) error {
	return s.createDoseTime(ctx, s.db, dt)
}

func (s *Store) createDoseTime(ctx context.Context, q dbtx, dt *models.DoseTime) error {
	if err := validateDoseTime(dt); err != nil {
		return err
	}

	var count int
	if err := q.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medication_schedules WHERE id = ?"), dt.ScheduleID).Scan(&count); err != nil {
		return fmt.Errorf("check schedule: %w", err)
	}
	if count == 0 {
		return notFoundErr("schedule", dt.ScheduleID)
	}

	if dt.ID == "" {
		dt.ID = newID()
	}

	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO medication_schedule_times
			(id, schedule_id, time_local, dosage, dose_amount, dose_unit, instructions, prn, sort_order, next_trigger_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		dt.ID, dt.ScheduleID, dt.TimeLocal, dt.Dosage, dt.DoseAmount, dt.DoseUnit,
		dt.Instructions, dt.PRN, dt.SortOrder, dt.NextTriggerTs)
	if err != nil {
		return fmt.Errorf("insert dose time: %w", err)
	}
	return nil
}

const doseTimeColumns = `id, schedule_id, time_local, dosage, dose_amount, dose_unit, instructions, prn, sort_order, next_trigger_ts`

func scanDoseTime(row rowScanner) (*models.DoseTime, error) {
	var dt models.DoseTime
	err := row.Scan(&dt.ID, &dt.ScheduleID, &dt.TimeLocal, &dt.Dosage, &dt.DoseAmount,
		&dt.DoseUnit, &dt.Instructions, &dt.PRN, &dt.SortOrder, &dt.NextTriggerTs)
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

func (s *Store) GetDoseTime(ctx context.Context, id string) (*models.DoseTime, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+doseTimeColumns+" FROM medication_schedule_times WHERE id = ?"), id)
	dt, err := scanDoseTime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("dose time", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select dose time: %w", err)
	}
	return dt, nil
}

func (s *Store) ListDoseTimesBySchedule(ctx context.Context, scheduleID string) ([]models.DoseTime, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medication_schedules WHERE id = ?"), scheduleID).Scan(&count); err != nil {
		return nil, fmt.Errorf("check schedule: %w", err)
	}
	if count == 0 {
		return nil, notFoundErr("schedule", scheduleID)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+doseTimeColumns+" FROM medication_schedule_times WHERE schedule_id = ? ORDER BY sort_order, time_local, id"),
		scheduleID)
	if err != nil {
		return nil, fmt.Errorf("select dose times: %w", err)
	}
	defer rows.Close()

	times := []models.DoseTime{}
	for rows.Next() {
		dt, err := scanDoseTime(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dose time: %w", err)
		}
		times = append(times, *dt)
	}
	return times, rows.Err()
}

// UpdateDoseTime merges the partial update and writes every mutable column
// except next_trigger_ts, which only SetNextTrigger touches.
func (s *Store) UpdateDoseTime(ctx context.Context, id string, req *models.UpdateDoseTimeRequest) (*models.DoseTime, error) {
	dt, err := s.GetDoseTime(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.TimeLocal != nil {
		dt.TimeLocal = *req.TimeLocal
	}
	if req.Dosage != nil {
		dt.Dosage = req.Dosage
	}
	if req.DoseAmount != nil {
		dt.DoseAmount = req.DoseAmount
	}
	if req.DoseUnit != nil {
		dt.DoseUnit = req.DoseUnit
	}
	if req.Instructions != nil {
		dt.Instructions = req.Instructions
	}
	if req.PRN != nil {
		dt.PRN = *req.PRN
	}
	if req.SortOrder != nil {
		dt.SortOrder = *req.SortOrder
	}

	if err := validateDoseTime(dt); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		UPDATE medication_schedule_times
		SET time_local = ?, dosage = ?, dose_amount = ?, dose_unit = ?, instructions = ?, prn = ?, sort_order = ?
		WHERE id = ?`),
		dt.TimeLocal, dt.Dosage, dt.DoseAmount, dt.DoseUnit, dt.Instructions, dt.PRN, dt.SortOrder, id)
	if err != nil {
		return nil, fmt.Errorf("update dose time: %w", err)
	}
	return dt, nil
}

// DeleteDoseTime removes the dose time and its intake logs in one
// transaction.
func (s *Store) DeleteDoseTime(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete dose time: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.rebind("DELETE FROM medication_intake_logs WHERE schedule_time_id = ?"), id); err != nil {
		return fmt.Errorf("delete intake logs: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		s.rebind("DELETE FROM medication_schedule_times WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete dose time: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr("dose time", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete dose time: %w", err)
	}
	return nil
}

// SetNextTrigger persists the computed next trigger (nil clears it). This
// is the only write path for next_trigger_ts.
func (s *Store) SetNextTrigger(ctx context.Context, id string, ts *int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE medication_schedule_times SET next_trigger_ts = ? WHERE id = ?"), ts, id)
	if err != nil {
		return fmt.Errorf("set next trigger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr("dose time", id)
	}
	return nil
}

// DoseTimeOwner resolves the owning user id by walking up to medications.
func (s *Store) DoseTimeOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT m.user_id FROM medications m
		JOIN medication_schedules sc ON sc.medication_id = m.id
		JOIN medication_schedule_times t ON t.schedule_id = sc.id
		WHERE t.id = ?`), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFoundErr("dose time", id)
	}
	if err != nil {
		return "", fmt.Errorf("select dose time owner: %w", err)
	}
	return owner, nil
}
