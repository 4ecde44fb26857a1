package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

type makeupRepo struct {
	q querier
}

const makeupColumns = `id, student_id, COALESCE(original_absence_id, ''), hours_owed, hours_completed,
	status, reason, due_date, completion_date, notes, version, created_at, updated_at`

func (r *makeupRepo) GetByID(ctx context.Context, id string) (*makeup.Record, error) {
	rec, err := scanMakeup(r.q.QueryRowContext(ctx, `SELECT `+makeupColumns+` FROM makeup_hours WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.NotFound("makeup", "GetByID", "makeup record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get makeup record: %w", err)
	}
	return rec, nil
}

func (r *makeupRepo) ListByStudent(ctx context.Context, studentID string) ([]*makeup.Record, error) {
	return r.list(ctx, `SELECT `+makeupColumns+` FROM makeup_hours WHERE student_id = ? ORDER BY id`, studentID)
}

func (r *makeupRepo) ListAll(ctx context.Context) ([]*makeup.Record, error) {
	return r.list(ctx, `SELECT `+makeupColumns+` FROM makeup_hours ORDER BY id`)
}

func (r *makeupRepo) GetByAbsenceIDs(ctx context.Context, absenceIDs []string) (map[string]*makeup.Record, error) {
	out := make(map[string]*makeup.Record, len(absenceIDs))
	if len(absenceIDs) == 0 {
		return out, nil
	}
	records, err := r.list(ctx, `SELECT `+makeupColumns+` FROM makeup_hours
		WHERE original_absence_id IN (`+placeholders(len(absenceIDs))+`)`, anySlice(absenceIDs)...)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[rec.OriginalAbsenceID] = rec
	}
	return out, nil
}

func (r *makeupRepo) Create(ctx context.Context, rec *makeup.Record) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO makeup_hours (
			id, student_id, original_absence_id, hours_owed, hours_completed, status,
			reason, due_date, completion_date, notes, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		rec.ID, rec.StudentID, nullString(rec.OriginalAbsenceID), rec.HoursOwed, rec.HoursCompleted,
		string(rec.Status), rec.Reason, rec.DueDate, completionUnix(rec.CompletionDate), rec.Notes,
		toUnix(rec.CreatedAt), toUnix(rec.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return shared.WrapError("makeup", "Create", shared.ErrAlreadyExists,
				"makeup record "+rec.ID+" or an obligation for its absence already exists", err)
		}
		return fmt.Errorf("insert makeup record: %w", err)
	}
	rec.Version = 1
	return nil
}

func (r *makeupRepo) Update(ctx context.Context, rec *makeup.Record, expectedVersion int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE makeup_hours SET
			hours_owed = ?, hours_completed = ?, status = ?, reason = ?, due_date = ?,
			completion_date = ?, notes = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		rec.HoursOwed, rec.HoursCompleted, string(rec.Status), rec.Reason, rec.DueDate,
		completionUnix(rec.CompletionDate), rec.Notes, toUnix(rec.UpdatedAt), rec.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update makeup record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, rec.ID); err != nil {
			return err
		}
		return shared.NewDomainError("makeup", "Update", shared.ErrOptimisticLock,
			"makeup record "+rec.ID+" changed concurrently")
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (r *makeupRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM makeup_hours WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete makeup record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.NotFound("makeup", "Delete", "makeup record", id)
	}
	return nil
}

func (r *makeupRepo) list(ctx context.Context, query string, args ...any) ([]*makeup.Record, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query makeup records: %w", err)
	}
	defer rows.Close()

	out := make([]*makeup.Record, 0)
	for rows.Next() {
		rec, err := scanMakeup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan makeup record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanMakeup(row scanner) (*makeup.Record, error) {
	var (
		rec              makeup.Record
		status           string
		completion       sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.OriginalAbsenceID, &rec.HoursOwed, &rec.HoursCompleted,
		&status, &rec.Reason, &rec.DueDate, &completion, &rec.Notes, &rec.Version, &created, &updated); err != nil {
		return nil, err
	}
	rec.Status = makeup.Status(status)
	if completion.Valid {
		t := fromUnix(completion.Int64)
		rec.CompletionDate = &t
	}
	rec.CreatedAt, rec.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &rec, nil
}

func completionUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}
