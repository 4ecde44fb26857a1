package clinical

import "context"

// Repository is the record-store contract for clinical logs.
type Repository interface {
	// Create stores a new entry.
	Create(ctx context.Context, entry *LogEntry) error

	// GetByID returns an entry or a not-found DomainError.
	GetByID(ctx context.Context, id string) (*LogEntry, error)

	// ListByStudent returns every entry of a student, in no particular order.
	ListByStudent(ctx context.Context, studentID string) ([]*LogEntry, error)

	// ListByStatus returns entries in the given review state, oldest first.
	ListByStatus(ctx context.Context, status LogStatus) ([]*LogEntry, error)

	// UpdateStatus persists a review transition. expected is the status the
	// caller read; a different stored status yields ErrOptimisticLock.
	UpdateStatus(ctx context.Context, entry *LogEntry, expected LogStatus) error
}
