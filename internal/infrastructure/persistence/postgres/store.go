package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
)

// Store implements uow.Transactor on top of a connection pool. Repositories
// returned by Store run on the pool; the ones handed to a WithinTx callback
// run on the transaction.
type Store struct {
	conn *Connection
}

var _ uow.Transactor = (*Store)(nil)

// NewStore creates a Store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// ClinicalLogs implements uow.Store.
func (s *Store) ClinicalLogs() clinical.Repository { return &ClinicalLogRepository{q: s.conn.Pool()} }

// Attendance implements uow.Store.
func (s *Store) Attendance() attendance.Repository { return &AttendanceRepository{q: s.conn.Pool()} }

// Makeup implements uow.Store.
func (s *Store) Makeup() makeup.Repository { return &MakeupRepository{q: s.conn.Pool()} }

// WithinTx runs fn in a read-committed transaction. Row locks taken by the
// repositories (SELECT ... FOR UPDATE) serialize concurrent writers to the
// same attendance records and obligations.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx uow.Store) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, txStore{q: tx})
	})
}

type txStore struct {
	q Querier
}

func (t txStore) ClinicalLogs() clinical.Repository { return &ClinicalLogRepository{q: t.q} }
func (t txStore) Attendance() attendance.Repository { return &AttendanceRepository{q: t.q, lock: true} }
func (t txStore) Makeup() makeup.Repository         { return &MakeupRepository{q: t.q, lock: true} }

// forUpdate returns the locking clause for reads inside a transaction.
func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}
