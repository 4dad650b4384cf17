package models

// Medication is the top-level entity a user tracks. Schedules hang off it,
// dose times hang off schedules, and intake logs hang off dose times.
type Medication struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	ProfileID string  `json:"profile_id"`
	Name      string  `json:"name"`
	Notes     *string `json:"notes,omitempty"`
	URL       *string `json:"medication_url,omitempty"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

type CreateMedicationRequest struct {
	ProfileID string  `json:"profile_id" validate:"omitempty,max=64"`
	Name      string  `json:"name" validate:"required,min=1,max=255"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
	URL       *string `json:"medication_url" validate:"omitempty,max=2048"`
}

// UpdateMedicationRequest carries a partial update; nil fields are left
// untouched. Owner, profile and timestamps are not updatable.
type UpdateMedicationRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=255"`
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
	URL   *string `json:"medication_url" validate:"omitempty,max=2048"`
}
