package store

import (
	"context"
	"fmt"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
)

// ImportRegimen persists a parsed regimen (one medication, one schedule,
// its dose times) atomically. Either the whole graph lands or none of it.
func (s *Store) ImportRegimen(ctx context.Context, med *models.Medication, sched *models.Schedule, times []*models.DoseTime) error {
	if len(times) == 0 {
		return validationErr("times", "at least one dose time is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if err := s.createMedication(ctx, tx, med); err != nil {
		return err
	}

	sched.MedicationID = med.ID
	if err := s.createSchedule(ctx, tx, sched); err != nil {
		return err
	}

	for _, dt := range times {
		dt.ScheduleID = sched.ID
		if err := s.createDoseTime(ctx, tx, dt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
