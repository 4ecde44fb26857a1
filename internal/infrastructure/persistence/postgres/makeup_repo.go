package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAKEUP HOURS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MakeupRepository implements makeup.Repository for PostgreSQL.
type MakeupRepository struct {
	q    Querier
	lock bool
}

const makeupColumns = `
	id, student_id, COALESCE(original_absence_id, ''), hours_owed::float8, hours_completed::float8,
	status, reason, COALESCE(due_date::text, ''), completion_date, notes, version, created_at, updated_at`

// GetByID returns a record by id.
func (r *MakeupRepository) GetByID(ctx context.Context, id string) (*makeup.Record, error) {
	row := r.q.QueryRow(ctx, `SELECT `+makeupColumns+` FROM makeup_hours WHERE id = $1`, id)
	rec, err := scanMakeup(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NotFound("makeup", "GetByID", "makeup record", id)
		}
		return nil, fmt.Errorf("failed to get makeup record: %w", err)
	}
	return rec, nil
}

// ListByStudent returns the records of one student.
func (r *MakeupRepository) ListByStudent(ctx context.Context, studentID string) ([]*makeup.Record, error) {
	return r.list(ctx, `SELECT `+makeupColumns+` FROM makeup_hours WHERE student_id = $1 ORDER BY id`, studentID)
}

// ListAll returns every record.
func (r *MakeupRepository) ListAll(ctx context.Context) ([]*makeup.Record, error) {
	return r.list(ctx, `SELECT `+makeupColumns+` FROM makeup_hours ORDER BY id`)
}

// GetByAbsenceIDs returns records keyed by original absence id. Inside a
// transaction the rows are locked until commit.
func (r *MakeupRepository) GetByAbsenceIDs(ctx context.Context, absenceIDs []string) (map[string]*makeup.Record, error) {
	out := make(map[string]*makeup.Record, len(absenceIDs))
	if len(absenceIDs) == 0 {
		return out, nil
	}

	records, err := r.list(ctx, `
		SELECT `+makeupColumns+` FROM makeup_hours
		WHERE original_absence_id = ANY($1)
		ORDER BY id`+forUpdate(r.lock), absenceIDs)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[rec.OriginalAbsenceID] = rec
	}
	return out, nil
}

// Create inserts a new record and sets its Version to 1.
func (r *MakeupRepository) Create(ctx context.Context, rec *makeup.Record) error {
	query := `
		INSERT INTO makeup_hours (
			id, student_id, original_absence_id, hours_owed, hours_completed, status,
			reason, due_date, completion_date, notes, version, created_at, updated_at
		) VALUES ($1, $2, NULLIF($3::text, ''), $4, $5, $6, $7, $8::date, $9, $10, 1, $11, $12)
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.StudentID,
		rec.OriginalAbsenceID,
		rec.HoursOwed,
		rec.HoursCompleted,
		string(rec.Status),
		rec.Reason,
		nullableDate(rec.DueDate),
		rec.CompletionDate,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("makeup", "Create", shared.ErrAlreadyExists,
				"makeup record "+rec.ID+" or an obligation for its absence already exists", err)
		}
		return fmt.Errorf("failed to create makeup record: %w", err)
	}

	rec.Version = 1
	return nil
}

// Update writes rec if the stored version still equals expectedVersion.
func (r *MakeupRepository) Update(ctx context.Context, rec *makeup.Record, expectedVersion int64) error {
	query := `
		UPDATE makeup_hours SET
			hours_owed = $3,
			hours_completed = $4,
			status = $5,
			reason = $6,
			due_date = $7::date,
			completion_date = $8,
			notes = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $2
	`

	tag, err := r.q.Exec(ctx, query,
		rec.ID,
		expectedVersion,
		rec.HoursOwed,
		rec.HoursCompleted,
		string(rec.Status),
		rec.Reason,
		nullableDate(rec.DueDate),
		rec.CompletionDate,
		rec.Notes,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update makeup record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, rec.ID); err != nil {
			return err
		}
		return shared.NewDomainError("makeup", "Update", shared.ErrOptimisticLock,
			"makeup record "+rec.ID+" changed concurrently")
	}

	rec.Version = expectedVersion + 1
	return nil
}

// Delete removes a record.
func (r *MakeupRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM makeup_hours WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete makeup record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("makeup", "Delete", "makeup record", id)
	}
	return nil
}

func (r *MakeupRepository) list(ctx context.Context, query string, args ...any) ([]*makeup.Record, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query makeup records: %w", err)
	}
	defer rows.Close()

	out := make([]*makeup.Record, 0)
	for rows.Next() {
		rec, err := scanMakeup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan makeup record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanMakeup(row pgx.Row) (*makeup.Record, error) {
	var (
		rec    makeup.Record
		status string
	)
	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.OriginalAbsenceID,
		&rec.HoursOwed,
		&rec.HoursCompleted,
		&status,
		&rec.Reason,
		&rec.DueDate,
		&rec.CompletionDate,
		&rec.Notes,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = makeup.Status(status)
	return &rec, nil
}
