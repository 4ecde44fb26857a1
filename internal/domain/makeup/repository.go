package makeup

import "context"

// Repository is the record-store contract for makeup obligations.
type Repository interface {
	// GetByID returns a record or a not-found DomainError.
	GetByID(ctx context.Context, id string) (*Record, error)

	// ListByStudent returns the records of one student.
	ListByStudent(ctx context.Context, studentID string) ([]*Record, error)

	// ListAll returns every record.
	ListAll(ctx context.Context) ([]*Record, error)

	// GetByAbsenceIDs returns records derived from the given attendance ids,
	// keyed by original absence id.
	GetByAbsenceIDs(ctx context.Context, absenceIDs []string) (map[string]*Record, error)

	// Create inserts a new record with Version 1.
	Create(ctx context.Context, r *Record) error

	// Update writes r if the stored version equals expectedVersion and bumps
	// r.Version. A mismatch yields ErrOptimisticLock and nothing is written.
	Update(ctx context.Context, r *Record, expectedVersion int64) error

	// Delete removes a record or returns a not-found DomainError.
	Delete(ctx context.Context, id string) error
}
