package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

type logRepo struct {
	q querier
}

const logColumns = `id, student_id, log_date, site_name, hours, is_simulation, is_makeup,
	status, description, feedback, reviewed_by, created_at, updated_at`

func (r *logRepo) Create(ctx context.Context, e *clinical.LogEntry) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO clinical_logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentID, e.Date, e.SiteName, e.Hours, e.IsSimulation, e.IsMakeup,
		string(e.Status), e.Description, e.Feedback, e.ReviewedBy, toUnix(e.CreatedAt), toUnix(e.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("clinical", "Create", shared.ErrAlreadyExists, "log "+e.ID+" already exists")
		}
		return fmt.Errorf("insert clinical log: %w", err)
	}
	return nil
}

func (r *logRepo) GetByID(ctx context.Context, id string) (*clinical.LogEntry, error) {
	e, err := scanLog(r.q.QueryRowContext(ctx, `SELECT `+logColumns+` FROM clinical_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NotFound("clinical", "GetByID", "clinical log", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get clinical log: %w", err)
	}
	return e, nil
}

func (r *logRepo) ListByStudent(ctx context.Context, studentID string) ([]*clinical.LogEntry, error) {
	return r.list(ctx, `SELECT `+logColumns+` FROM clinical_logs WHERE student_id = ? ORDER BY id`, studentID)
}

func (r *logRepo) ListByStatus(ctx context.Context, status clinical.LogStatus) ([]*clinical.LogEntry, error) {
	return r.list(ctx, `SELECT `+logColumns+` FROM clinical_logs WHERE status = ? ORDER BY created_at, id`, string(status))
}

func (r *logRepo) UpdateStatus(ctx context.Context, e *clinical.LogEntry, expected clinical.LogStatus) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE clinical_logs SET status = ?, feedback = ?, reviewed_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(e.Status), e.Feedback, e.ReviewedBy, toUnix(e.UpdatedAt), e.ID, string(expected))
	if err != nil {
		return fmt.Errorf("update clinical log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, e.ID); err != nil {
		return err
	}
	return shared.NewDomainError("clinical", "UpdateStatus", shared.ErrOptimisticLock, "log "+e.ID+" changed concurrently")
}

func (r *logRepo) list(ctx context.Context, query string, args ...any) ([]*clinical.LogEntry, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clinical logs: %w", err)
	}
	defer rows.Close()

	out := make([]*clinical.LogEntry, 0)
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clinical log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner) (*clinical.LogEntry, error) {
	var (
		e                clinical.LogEntry
		status           string
		created, updated int64
	)
	if err := row.Scan(&e.ID, &e.StudentID, &e.Date, &e.SiteName, &e.Hours, &e.IsSimulation, &e.IsMakeup,
		&status, &e.Description, &e.Feedback, &e.ReviewedBy, &created, &updated); err != nil {
		return nil, err
	}
	e.Status = clinical.LogStatus(status)
	e.CreatedAt, e.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &e, nil
}
