package store

import (
	"context"
	"fmt"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
)

// LogIntake appends one row to the intake ledger. The ledger is
// append-only: there is no update or single-row delete, and logging never
// touches the dose time's next_trigger_ts.
func (s *Store) LogIntake(ctx context.Context, doseTimeID string, req *models.LogIntakeRequest) (*models.IntakeLog, error) {
	status := models.IntakeStatus(req.Status)
	if !status.Valid() {
		return nil, validationErr("status", "must be one of taken, missed, skipped, snoozed")
	}
	if req.ActualDoseAmount != nil && *req.ActualDoseAmount <= 0 {
		return nil, validationErr("actual_dose_amount", "must be positive")
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medication_schedule_times WHERE id = ?"), doseTimeID).Scan(&count); err != nil {
		return nil, fmt.Errorf("check dose time: %w", err)
	}
	if count == 0 {
		return nil, notFoundErr("dose time", doseTimeID)
	}

	log := &models.IntakeLog{
		ID:               newID(),
		DoseTimeID:       doseTimeID,
		TakenTs:          nowMillis(),
		Status:           status,
		ActualDoseAmount: req.ActualDoseAmount,
		ActualDoseUnit:   req.ActualDoseUnit,
		Notes:            req.Notes,
	}
	if req.TakenTs != nil {
		log.TakenTs = *req.TakenTs
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO medication_intake_logs
			(id, schedule_time_id, taken_ts, status, actual_dose_amount, actual_dose_unit, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		log.ID, log.DoseTimeID, log.TakenTs, string(log.Status),
		log.ActualDoseAmount, log.ActualDoseUnit, log.Notes)
	if err != nil {
		return nil, fmt.Errorf("insert intake log: %w", err)
	}
	return log, nil
}

// ListIntakeLogs returns all ledger rows under a medication, newest first.
// The from/to band ends are inclusive when supplied.
func (s *Store) ListIntakeLogs(ctx context.Context, medicationID string, from, to *int64) ([]models.IntakeLog, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medications WHERE id = ?"), medicationID).Scan(&count); err != nil {
		return nil, fmt.Errorf("check medication: %w", err)
	}
	if count == 0 {
		return nil, notFoundErr("medication", medicationID)
	}

	query := `
		SELECT l.id, l.schedule_time_id, l.taken_ts, l.status, l.actual_dose_amount, l.actual_dose_unit, l.notes
		FROM medication_intake_logs l
		JOIN medication_schedule_times t ON t.id = l.schedule_time_id
		JOIN medication_schedules sc ON sc.id = t.schedule_id
		WHERE sc.medication_id = ?`
	args := []any{medicationID}
	if from != nil {
		query += " AND l.taken_ts >= ?"
		args = append(args, *from)
	}
	if to != nil {
		query += " AND l.taken_ts <= ?"
		args = append(args, *to)
	}
	query += " ORDER BY l.taken_ts DESC, l.id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select intake logs: %w", err)
	}
	defer rows.Close()

	logs := []models.IntakeLog{}
	for rows.Next() {
		var l models.IntakeLog
		var status string
		if err := rows.Scan(&l.ID, &l.DoseTimeID, &l.TakenTs, &status,
			&l.ActualDoseAmount, &l.ActualDoseUnit, &l.Notes); err != nil {
			return nil, fmt.Errorf("scan intake log: %w", err)
		}
		l.Status = models.IntakeStatus(status)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
