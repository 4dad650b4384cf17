package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
)

// CreateMedication inserts a new medication. A fresh id is assigned when
// none is supplied; timestamps are always set here, never by the caller.
func (s *Store) CreateMedication(ctx context.Context, m *models.Medication) error {
	return s.createMedication(ctx, s.db, m)
}

func (s *Store) createMedication(ctx context.Context, q dbtx, m *models.Medication) error {
	if strings.TrimSpace(m.UserID) == "" {
		return validationErr("user_id", "required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return validationErr("name", "required")
	}

	if m.ID == "" {
		m.ID = newID()
	}
	now := nowMillis()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO medications (id, user_id, profile_id, name, notes, medication_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.UserID, m.ProfileID, m.Name, m.Notes, m.URL, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

func (s *Store) GetMedication(ctx context.Context, id string) (*models.Medication, error) {
	var m models.Medication
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, user_id, profile_id, name, notes, medication_url, created_at, updated_at
		FROM medications WHERE id = ?`), id).
		Scan(&m.ID, &m.UserID, &m.ProfileID, &m.Name, &m.Notes, &m.URL, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("medication", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select medication: %w", err)
	}
	return &m, nil
}

// ListMedications returns the user's medications, optionally filtered to
// one profile, newest first.
func (s *Store) ListMedications(ctx context.Context, userID string, profileID *string) ([]models.Medication, error) {
	query := `
		SELECT id, user_id, profile_id, name, notes, medication_url, created_at, updated_at
		FROM medications WHERE user_id = ?`
	args := []any{userID}
	if profileID != nil {
		query += " AND profile_id = ?"
		args = append(args, *profileID)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select medications: %w", err)
	}
	defer rows.Close()

	meds := []models.Medication{}
	for rows.Next() {
		var m models.Medication
		if err := rows.Scan(&m.ID, &m.UserID, &m.ProfileID, &m.Name, &m.Notes, &m.URL, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

// UpdateMedication applies a partial update. Identity, ownership and
// created_at never change; updated_at is refreshed.
func (s *Store) UpdateMedication(ctx context.Context, id string, req *models.UpdateMedicationRequest) (*models.Medication, error) {
	sets := []string{}
	args := []any{}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, validationErr("name", "required")
		}
		sets = append(sets, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *req.Notes)
	}
	if req.URL != nil {
		sets = append(sets, "medication_url = ?")
		args = append(args, *req.URL)
	}

	if len(sets) == 0 {
		return s.GetMedication(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, nowMillis(), id)

	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE medications SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFoundErr("medication", id)
	}
	return s.GetMedication(ctx, id)
}

// DeleteMedication removes the medication and everything under it in one
// transaction. It returns the ids of the dose times that were removed so
// the caller can cancel any armed reminders after commit.
func (s *Store) DeleteMedication(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete medication: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM medications WHERE id = ?"), id).Scan(&count); err != nil {
		return nil, fmt.Errorf("check medication: %w", err)
	}
	if count == 0 {
		return nil, notFoundErr("medication", id)
	}

	doseTimeIDs, err := collectIDs(ctx, tx, s.rebind(`
		SELECT t.id FROM medication_schedule_times t
		JOIN medication_schedules sc ON sc.id = t.schedule_id
		WHERE sc.medication_id = ?`), id)
	if err != nil {
		return nil, err
	}

	// Children first so the delete is complete even without FK cascades.
	steps := []string{
		`DELETE FROM medication_intake_logs WHERE schedule_time_id IN (
			SELECT t.id FROM medication_schedule_times t
			JOIN medication_schedules sc ON sc.id = t.schedule_id
			WHERE sc.medication_id = ?)`,
		`DELETE FROM medication_schedule_times WHERE schedule_id IN (
			SELECT id FROM medication_schedules WHERE medication_id = ?)`,
		`DELETE FROM medication_schedules WHERE medication_id = ?`,
		`DELETE FROM medications WHERE id = ?`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
			return nil, fmt.Errorf("delete medication cascade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete medication: %w", err)
	}
	return doseTimeIDs, nil
}

// MedicationOwner resolves the owning user id, for access checks.
func (s *Store) MedicationOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT user_id FROM medications WHERE id = ?"), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFoundErr("medication", id)
	}
	if err != nil {
		return "", fmt.Errorf("select medication owner: %w", err)
	}
	return owner, nil
}

func collectIDs(ctx context.Context, q dbtx, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
