package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
)

// querier is implemented by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements uow.Transactor over an SQLite database.
type Store struct {
	db *DB
}

var _ uow.Transactor = (*Store)(nil)

// NewStore creates a Store. The database must be migrated.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// ClinicalLogs implements uow.Store.
func (s *Store) ClinicalLogs() clinical.Repository { return &logRepo{q: s.db.conn} }

// Attendance implements uow.Store.
func (s *Store) Attendance() attendance.Repository { return &attendanceRepo{q: s.db.conn} }

// Makeup implements uow.Store.
func (s *Store) Makeup() makeup.Repository { return &makeupRepo{q: s.db.conn} }

// WithinTx runs fn in an immediate-mode transaction. SQLite serializes
// writers, so no row locking is needed.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx uow.Store) error) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, txStore{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txStore struct {
	q querier
}

func (t txStore) ClinicalLogs() clinical.Repository { return &logRepo{q: t.q} }
func (t txStore) Attendance() attendance.Repository { return &attendanceRepo{q: t.q} }
func (t txStore) Makeup() makeup.Repository         { return &makeupRepo{q: t.q} }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
