// Package sqlite provides a single-file record store for the clinical hours
// service. It backs the CLI and small single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens an SQLite database at the given path, creating parent
// directories. ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; transactions hold the only connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate applies all pending schema migrations and returns how many ran.
func (db *DB) Migrate(ctx context.Context) (int, error) {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1ClinicalLogs},
		{2, migrationV2Attendance},
		{3, migrationV3Makeup},
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		applied++
	}

	return applied, nil
}

const migrationV1ClinicalLogs = `
CREATE TABLE IF NOT EXISTS clinical_logs (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	log_date TEXT NOT NULL,
	site_name TEXT NOT NULL DEFAULT '',
	hours REAL NOT NULL,
	is_simulation INTEGER NOT NULL DEFAULT 0,
	is_makeup INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'Pending',
	description TEXT NOT NULL DEFAULT '',
	feedback TEXT NOT NULL DEFAULT '',
	reviewed_by TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clinical_logs_student ON clinical_logs(student_id);
CREATE INDEX IF NOT EXISTS idx_clinical_logs_status ON clinical_logs(status, created_at);
`

const migrationV2Attendance = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	attendance_date TEXT NOT NULL,
	attendance_type TEXT NOT NULL CHECK (attendance_type IN ('classroom', 'clinical')),
	status TEXT NOT NULL,
	hours_required REAL NOT NULL,
	hours_attended REAL,
	notes TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (student_id, attendance_date, attendance_type)
);
CREATE INDEX IF NOT EXISTS idx_attendance_date_type ON attendance_records(attendance_date, attendance_type);
`

const migrationV3Makeup = `
CREATE TABLE IF NOT EXISTS makeup_hours (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	original_absence_id TEXT UNIQUE,
	hours_owed REAL NOT NULL,
	hours_completed REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	reason TEXT NOT NULL DEFAULT '',
	due_date TEXT NOT NULL DEFAULT '',
	completion_date INTEGER,
	notes TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_makeup_student ON makeup_hours(student_id);
`

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
