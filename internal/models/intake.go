package models

// IntakeStatus is the outcome recorded for one dose occurrence.
type IntakeStatus string

const (
	IntakeTaken   IntakeStatus = "taken"
	IntakeMissed  IntakeStatus = "missed"
	IntakeSkipped IntakeStatus = "skipped"
	IntakeSnoozed IntakeStatus = "snoozed"
)

// Valid reports whether the status is one of the four known outcomes.
func (s IntakeStatus) Valid() bool {
	switch s {
	case IntakeTaken, IntakeMissed, IntakeSkipped, IntakeSnoozed:
		return true
	}
	return false
}

// IntakeLog is one append-only ledger row. Rows are never updated or
// deleted individually; they only disappear when an ancestor is deleted.
type IntakeLog struct {
	ID               string       `json:"id"`
	DoseTimeID       string       `json:"schedule_time_id"`
	TakenTs          int64        `json:"taken_ts"`
	Status           IntakeStatus `json:"status"`
	ActualDoseAmount *float64     `json:"actual_dose_amount,omitempty"`
	ActualDoseUnit   *string      `json:"actual_dose_unit,omitempty"`
	Notes            *string      `json:"notes,omitempty"`
}

type LogIntakeRequest struct {
	Status           string   `json:"status" validate:"required,oneof=taken missed skipped snoozed"`
	TakenTs          *int64   `json:"taken_ts"`
	ActualDoseAmount *float64 `json:"actual_dose_amount" validate:"omitempty,gt=0"`
	ActualDoseUnit   *string  `json:"actual_dose_unit" validate:"omitempty,max=32"`
	Notes            *string  `json:"notes" validate:"omitempty,max=2000"`
}

// RegimenImport is the shape produced by the regimen parser: one
// medication, one schedule, and its dose times, applied atomically.
type RegimenImport struct {
	Medication CreateMedicationRequest `json:"medication" validate:"required"`
	Schedule   CreateScheduleRequest   `json:"schedule" validate:"required"`
	Times      []CreateDoseTimeRequest `json:"times" validate:"required,min=1,dive"`
}
