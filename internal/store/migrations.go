package store

import (
	"fmt"
)

const schemaVersion = 1

func (s *Store) migrate() error {
	switch s.driver {
	case DriverPostgres:
		return s.migratePostgres()
	default:
		return s.migrateSQLite()
	}
}

func (s *Store) migrateSQLite() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

func (s *Store) migratePostgres() error {
	if _, err := s.db.Exec(postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS medications (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	profile_id     TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	notes          TEXT,
	medication_url TEXT,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_medications_user ON medications(user_id);

CREATE TABLE IF NOT EXISTS medication_schedules (
	id                TEXT PRIMARY KEY,
	medication_id     TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
	schedule          TEXT NOT NULL,
	frequency_per_day INTEGER,
	is_forever        INTEGER NOT NULL DEFAULT 0,
	start_date        INTEGER,
	end_date          INTEGER,
	days_of_week      TEXT NOT NULL DEFAULT '',
	timezone          TEXT NOT NULL,
	reminder_enabled  INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_schedules_medication ON medication_schedules(medication_id);

CREATE TABLE IF NOT EXISTS medication_schedule_times (
	id              TEXT PRIMARY KEY,
	schedule_id     TEXT NOT NULL REFERENCES medication_schedules(id) ON DELETE CASCADE,
	time_local      TEXT NOT NULL,
	dosage          TEXT,
	dose_amount     REAL,
	dose_unit       TEXT,
	instructions    TEXT,
	prn             INTEGER NOT NULL DEFAULT 0,
	sort_order      INTEGER NOT NULL DEFAULT 0,
	next_trigger_ts INTEGER
);

CREATE INDEX IF NOT EXISTS idx_times_schedule ON medication_schedule_times(schedule_id);
CREATE INDEX IF NOT EXISTS idx_times_next_trigger ON medication_schedule_times(next_trigger_ts);

CREATE TABLE IF NOT EXISTS medication_intake_logs (
	id                 TEXT PRIMARY KEY,
	schedule_time_id   TEXT NOT NULL REFERENCES medication_schedule_times(id) ON DELETE CASCADE,
	taken_ts           INTEGER NOT NULL,
	status             TEXT NOT NULL CHECK (status IN ('taken', 'missed', 'skipped', 'snoozed')),
	actual_dose_amount REAL,
	actual_dose_unit   TEXT,
	notes              TEXT
);

CREATE INDEX IF NOT EXISTS idx_intake_logs_time  ON medication_intake_logs(schedule_time_id);
CREATE INDEX IF NOT EXISTS idx_intake_logs_taken ON medication_intake_logs(taken_ts);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS medications (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	profile_id     TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	notes          TEXT,
	medication_url TEXT,
	created_at     BIGINT NOT NULL,
	updated_at     BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_medications_user ON medications(user_id);

CREATE TABLE IF NOT EXISTS medication_schedules (
	id                TEXT PRIMARY KEY,
	medication_id     TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
	schedule          TEXT NOT NULL,
	frequency_per_day INTEGER,
	is_forever        BOOLEAN NOT NULL DEFAULT FALSE,
	start_date        BIGINT,
	end_date          BIGINT,
	days_of_week      TEXT NOT NULL DEFAULT '',
	timezone          TEXT NOT NULL,
	reminder_enabled  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_schedules_medication ON medication_schedules(medication_id);

CREATE TABLE IF NOT EXISTS medication_schedule_times (
	id              TEXT PRIMARY KEY,
	schedule_id     TEXT NOT NULL REFERENCES medication_schedules(id) ON DELETE CASCADE,
	time_local      TEXT NOT NULL,
	dosage          TEXT,
	dose_amount     DOUBLE PRECISION,
	dose_unit       TEXT,
	instructions    TEXT,
	prn             BOOLEAN NOT NULL DEFAULT FALSE,
	sort_order      INTEGER NOT NULL DEFAULT 0,
	next_trigger_ts BIGINT
);

CREATE INDEX IF NOT EXISTS idx_times_schedule ON medication_schedule_times(schedule_id);
CREATE INDEX IF NOT EXISTS idx_times_next_trigger ON medication_schedule_times(next_trigger_ts);

CREATE TABLE IF NOT EXISTS medication_intake_logs (
	id                 TEXT PRIMARY KEY,
	schedule_time_id   TEXT NOT NULL REFERENCES medication_schedule_times(id) ON DELETE CASCADE,
	taken_ts           BIGINT NOT NULL,
	status             TEXT NOT NULL CHECK (status IN ('taken', 'missed', 'skipped', 'snoozed')),
	actual_dose_amount DOUBLE PRECISION,
	actual_dose_unit   TEXT,
	notes              TEXT
);

CREATE INDEX IF NOT EXISTS idx_intake_logs_time  ON medication_intake_logs(schedule_time_id);
CREATE INDEX IF NOT EXISTS idx_intake_logs_taken ON medication_intake_logs(taken_ts);
`
