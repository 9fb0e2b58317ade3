package store

import (
	"context"
	"database/sql"
	"strings"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		participant_id TEXT NOT NULL UNIQUE,
		student_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		cohort TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_student ON profiles (student_id)`,
	`CREATE TABLE IF NOT EXISTS attendance_events (
		id UUID PRIMARY KEY,
		participant_id TEXT NOT NULL REFERENCES profiles(participant_id),
		student_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		cohort TEXT,
		distance_m DOUBLE PRECISION NOT NULL,
		is_first_time BOOLEAN NOT NULL DEFAULT FALSE,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_events_occurred ON attendance_events (occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_events_cohort ON attendance_events (cohort, occurred_at)`,
}

// Migrate applies the schema; every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
