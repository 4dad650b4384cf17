package reminder

// Payload identifies what an armed reminder is about. It travels with the
// reminder and comes back unchanged when it fires.
type Payload struct {
	MedicationID string `json:"medication_id"`
	ScheduleID   string `json:"schedule_id"`
	DoseTimeID   string `json:"dose_time_id"`
}

// Dispatcher is the arming side of reminder delivery. Reminders are keyed
// by dose time id: Arm replaces anything already armed under the same id,
// and Cancel of an unknown id is a no-op, so both are safe to repeat.
// Implementations must be quick; a slow or failing dispatcher must never
// fail the store write that asked for it.
type Dispatcher interface {
	Arm(reminderID string, firesAt int64, payload Payload) error
	Cancel(reminderID string) error
}
