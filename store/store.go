// Package store provides the embedded SQLite persistence layer for the
// clinic server. It owns the schema and the row mapping for patients,
// prescriptions, charts, surveys, medication tracking, staff accounts and the
// herb/formula catalog the prescription engine is built from.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the embedded database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite allows a single writer; serialize all access through
	// one connection to avoid SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clinic_settings (
		id TEXT PRIMARY KEY,
		clinic_name TEXT NOT NULL,
		clinic_address TEXT NOT NULL DEFAULT '',
		clinic_phone TEXT NOT NULL DEFAULT '',
		doctor_name TEXT NOT NULL DEFAULT '',
		license_number TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		chart_number TEXT NOT NULL DEFAULT '',
		birth_date TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name);

	CREATE TABLE IF NOT EXISTS herbs (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		unit TEXT NOT NULL DEFAULT 'g'
	);

	CREATE TABLE IF NOT EXISTS formula_definitions (
		name TEXT PRIMARY KEY,
		alias TEXT NOT NULL DEFAULT '',
		composition TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS prescriptions (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		prescription_name TEXT NOT NULL,
		formula_text TEXT NOT NULL DEFAULT '',
		adjustment_text TEXT NOT NULL DEFAULT '',
		merged_herbs TEXT NOT NULL DEFAULT '[]',
		final_herbs TEXT NOT NULL DEFAULT '[]',
		dosing TEXT NOT NULL DEFAULT '{}',
		dosage_instructions TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_prescriptions_patient ON prescriptions(patient_id);

	CREATE TABLE IF NOT EXISTS initial_charts (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		doctor_name TEXT NOT NULL DEFAULT '',
		chart_date TEXT NOT NULL,
		chief_complaint TEXT NOT NULL DEFAULT '',
		present_illness TEXT NOT NULL DEFAULT '',
		past_medical_history TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		prescription_issued INTEGER NOT NULL DEFAULT 0,
		prescription_issued_at TEXT NOT NULL DEFAULT '',
		deleted_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_initial_charts_patient ON initial_charts(patient_id);

	CREATE TABLE IF NOT EXISTS progress_notes (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		doctor_name TEXT NOT NULL DEFAULT '',
		note_date TEXT NOT NULL,
		subjective TEXT NOT NULL DEFAULT '',
		objective TEXT NOT NULL DEFAULT '',
		assessment TEXT NOT NULL DEFAULT '',
		plan TEXT NOT NULL DEFAULT '',
		follow_up_plan TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		prescription_issued INTEGER NOT NULL DEFAULT 0,
		prescription_issued_at TEXT NOT NULL DEFAULT '',
		deleted_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_progress_notes_patient ON progress_notes(patient_id);

	CREATE TABLE IF NOT EXISTS survey_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS survey_sessions (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		template_id TEXT NOT NULL,
		patient_id TEXT NOT NULL DEFAULT '',
		respondent_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS survey_responses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		patient_id TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL,
		respondent_name TEXT NOT NULL DEFAULT '',
		answers TEXT NOT NULL DEFAULT '[]',
		submitted_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS medication_schedules (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		prescription_id TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		times_per_day INTEGER NOT NULL,
		medication_times TEXT NOT NULL DEFAULT '[]',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_medication_schedules_patient ON medication_schedules(patient_id);

	CREATE TABLE IF NOT EXISTS medication_logs (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_medication_logs_schedule ON medication_logs(schedule_id);

	CREATE TABLE IF NOT EXISTS staff_accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		permissions TEXT NOT NULL DEFAULT '{}',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		notification_type TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		schedule_id TEXT NOT NULL DEFAULT '',
		patient_id TEXT NOT NULL DEFAULT '',
		is_read INTEGER NOT NULL DEFAULT 0,
		is_dismissed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		read_at TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Timestamps are stored as RFC 3339 text. A malformed stored value scans to
// the zero time rather than erroring; rows written by this package are always
// well formed.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
