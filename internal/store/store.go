// Package store is the sqlite-backed entity store. All reads are scoped
// to one organization; schedule mutations use optimistic version checks.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a schedule mutation carries a
	// stale expected version. Retryable by the caller, never merged.
	ErrVersionConflict = errors.New("schedule version conflict")
)

// Store wraps sql.DB for the scheduling core.
type Store struct {
	*sql.DB
}

// Open opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL,
			labels TEXT,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS practitioners (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			gender TEXT,
			certifications TEXT,
			working_hours TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (org_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS availability_overrides (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			practitioner_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (practitioner_id) REFERENCES practitioners(id)
		)`,

		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			gender TEXT,
			sessions_per_week INTEGER NOT NULL DEFAULT 1,
			required_certifications TEXT,
			preferred_room_id TEXT,
			required_room_capabilities TEXT,
			preferred_time_windows TEXT,
			gender_preference TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (org_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS session_specs (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sessions_per_week INTEGER NOT NULL DEFAULT 1,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			required_certifications TEXT,
			required_room_capabilities TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (client_id) REFERENCES clients(id)
		)`,

		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			capabilities TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (org_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT,
			payload TEXT,
			priority INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (org_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS holidays (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			date TEXT NOT NULL,
			name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (org_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			week_start TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (org_id) REFERENCES organizations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			schedule_id TEXT NOT NULL,
			practitioner_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			room_id TEXT,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_practitioners_org ON practitioners(org_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_practitioner_date ON availability_overrides(practitioner_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_clients_org ON clients(org_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_specs_client ON session_specs(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_org ON rooms(org_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_org_active ON rules(org_id, active)`,
		`CREATE INDEX IF NOT EXISTS idx_holidays_org_date ON holidays(org_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_org ON schedules(org_id, week_start)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_schedule ON sessions(schedule_id, date, start_time)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// marshalJSON encodes a value for a TEXT column; nil slices/maps become "".
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON decodes a TEXT column into out; empty text is a no-op.
func unmarshalJSON(data string, out any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), out)
}
