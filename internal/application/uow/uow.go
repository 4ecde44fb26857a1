// Package uow defines the record-store boundary used by the application layer.
// A Store groups the three repositories; a Transactor runs a function against
// a Store whose writes commit or roll back together.
package uow

import (
	"context"

	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
)

// Store exposes the repositories of one record store.
type Store interface {
	ClinicalLogs() clinical.Repository
	Attendance() attendance.Repository
	Makeup() makeup.Repository
}

// Transactor is a Store that can scope writes to a transaction.
type Transactor interface {
	Store

	// WithinTx runs fn against a transactional view of the store. Any error
	// returned by fn rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
