package models

import (
	"fmt"
)

// DoseTime is one wall-clock slot within a schedule ("08:00 take 2 pills").
// NextTriggerTs is the persisted next reminder instant in epoch ms; nil
// means nothing upcoming (PRN, window exhausted, or degenerate day set).
type DoseTime struct {
	ID            string   `json:"id"`
	ScheduleID    string   `json:"schedule_id"`
	TimeLocal     string   `json:"time_local"`
	Dosage        *string  `json:"dosage,omitempty"`
	DoseAmount    *float64 `json:"dose_amount,omitempty"`
	DoseUnit      *string  `json:"dose_unit,omitempty"`
	Instructions  *string  `json:"instructions,omitempty"`
	PRN           bool     `json:"prn"`
	SortOrder     int      `json:"sort_order"`
	NextTriggerTs *int64   `json:"next_trigger_ts,omitempty"`
}

type CreateDoseTimeRequest struct {
	TimeLocal    string   `json:"time_local" validate:"required,len=5"`
	Dosage       *string  `json:"dosage" validate:"omitempty,max=255"`
	DoseAmount   *float64 `json:"dose_amount" validate:"omitempty,gt=0"`
	DoseUnit     *string  `json:"dose_unit" validate:"omitempty,max=32"`
	Instructions *string  `json:"instructions" validate:"omitempty,max=2000"`
	PRN          bool     `json:"prn"`
	SortOrder    *int     `json:"sort_order" validate:"omitempty,min=0"`
}

type UpdateDoseTimeRequest struct {
	TimeLocal    *string  `json:"time_local" validate:"omitempty,len=5"`
	Dosage       *string  `json:"dosage" validate:"omitempty,max=255"`
	DoseAmount   *float64 `json:"dose_amount" validate:"omitempty,gt=0"`
	DoseUnit     *string  `json:"dose_unit" validate:"omitempty,max=32"`
	Instructions *string  `json:"instructions" validate:"omitempty,max=2000"`
	PRN          *bool    `json:"prn"`
	SortOrder    *int     `json:"sort_order" validate:"omitempty,min=0"`
}

// ParseClock parses a "HH:MM" wall-clock value. Exactly two digits on
// each side of the colon, hour 00-23, minute 00-59.
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return hour, minute, nil
}
