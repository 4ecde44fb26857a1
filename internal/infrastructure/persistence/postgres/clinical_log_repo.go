package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLINICAL LOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ClinicalLogRepository implements clinical.Repository for PostgreSQL.
type ClinicalLogRepository struct {
	q Querier
}

const clinicalLogColumns = `
	id, student_id, log_date::text, site_name, hours::float8, is_simulation, is_makeup,
	status, description, feedback, reviewed_by, created_at, updated_at`

// Create inserts a new log entry.
func (r *ClinicalLogRepository) Create(ctx context.Context, e *clinical.LogEntry) error {
	query := `
		INSERT INTO clinical_logs (
			id, student_id, log_date, site_name, hours, is_simulation, is_makeup,
			status, description, feedback, reviewed_by, created_at, updated_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.Exec(ctx, query,
		e.ID,
		e.StudentID,
		e.Date,
		e.SiteName,
		e.Hours,
		e.IsSimulation,
		e.IsMakeup,
		string(e.Status),
		e.Description,
		e.Feedback,
		e.ReviewedBy,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("clinical", "Create", shared.ErrAlreadyExists, "log "+e.ID+" already exists")
		}
		return fmt.Errorf("failed to create clinical log: %w", err)
	}
	return nil
}

// GetByID returns a log entry by id.
func (r *ClinicalLogRepository) GetByID(ctx context.Context, id string) (*clinical.LogEntry, error) {
	row := r.q.QueryRow(ctx, `SELECT `+clinicalLogColumns+` FROM clinical_logs WHERE id = $1`, id)
	e, err := scanClinicalLog(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NotFound("clinical", "GetByID", "clinical log", id)
		}
		return nil, fmt.Errorf("failed to get clinical log: %w", err)
	}
	return e, nil
}

// ListByStudent returns every entry of a student.
func (r *ClinicalLogRepository) ListByStudent(ctx context.Context, studentID string) ([]*clinical.LogEntry, error) {
	return r.list(ctx, `SELECT `+clinicalLogColumns+` FROM clinical_logs WHERE student_id = $1 ORDER BY id`, studentID)
}

// ListByStatus returns entries in a review state, oldest first.
func (r *ClinicalLogRepository) ListByStatus(ctx context.Context, status clinical.LogStatus) ([]*clinical.LogEntry, error) {
	return r.list(ctx, `SELECT `+clinicalLogColumns+` FROM clinical_logs WHERE status = $1 ORDER BY created_at, id`, string(status))
}

// UpdateStatus persists a review transition guarded by the expected status.
func (r *ClinicalLogRepository) UpdateStatus(ctx context.Context, e *clinical.LogEntry, expected clinical.LogStatus) error {
	query := `
		UPDATE clinical_logs SET
			status = $2,
			feedback = $3,
			reviewed_by = $4,
			updated_at = $5
		WHERE id = $1 AND status = $6
	`

	tag, err := r.q.Exec(ctx, query, e.ID, string(e.Status), e.Feedback, e.ReviewedBy, e.UpdatedAt, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update clinical log: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, e.ID); err != nil {
		return err
	}
	return shared.NewDomainError("clinical", "UpdateStatus", shared.ErrOptimisticLock, "log "+e.ID+" changed concurrently")
}

func (r *ClinicalLogRepository) list(ctx context.Context, query string, args ...any) ([]*clinical.LogEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clinical logs: %w", err)
	}
	defer rows.Close()

	out := make([]*clinical.LogEntry, 0)
	for rows.Next() {
		e, err := scanClinicalLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clinical log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanClinicalLog(row pgx.Row) (*clinical.LogEntry, error) {
	var (
		e      clinical.LogEntry
		status string
	)
	err := row.Scan(
		&e.ID,
		&e.StudentID,
		&e.Date,
		&e.SiteName,
		&e.Hours,
		&e.IsSimulation,
		&e.IsMakeup,
		&status,
		&e.Description,
		&e.Feedback,
		&e.ReviewedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = clinical.LogStatus(status)
	return &e, nil
}
