package sqlite

import (
	"context"
	"fmt"

	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
)

type attendanceRepo struct {
	q querier
}

const attendanceColumns = `id, student_id, attendance_date, attendance_type, status,
	hours_required, hours_attended, notes, created_at, updated_at`

func (r *attendanceRepo) ListByDate(ctx context.Context, date string, t attendance.Type) ([]*attendance.Record, error) {
	return r.list(ctx, `SELECT `+attendanceColumns+` FROM attendance_records
		WHERE attendance_date = ? AND (? = '' OR attendance_type = ?)
		ORDER BY id`, date, string(t), string(t))
}

func (r *attendanceRepo) ListByStudent(ctx context.Context, studentID string) ([]*attendance.Record, error) {
	return r.list(ctx, `SELECT `+attendanceColumns+` FROM attendance_records
		WHERE student_id = ? ORDER BY attendance_date, id`, studentID)
}

// ListRange compares dates as text; YYYY-MM-DD sorts chronologically.
func (r *attendanceRepo) ListRange(ctx context.Context, t attendance.Type, from, to string) ([]*attendance.Record, error) {
	return r.list(ctx, `SELECT `+attendanceColumns+` FROM attendance_records
		WHERE (? = '' OR attendance_type = ?)
		  AND (? = '' OR attendance_date >= ?)
		  AND (? = '' OR attendance_date <= ?)
		ORDER BY attendance_date, id`, string(t), string(t), from, from, to, to)
}

func (r *attendanceRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*attendance.Record, error) {
	out := make(map[string]*attendance.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	records, err := r.list(ctx, `SELECT `+attendanceColumns+` FROM attendance_records
		WHERE id IN (`+placeholders(len(ids))+`)`, anySlice(ids)...)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[rec.ID] = rec
	}
	return out, nil
}

func (r *attendanceRepo) UpsertBatch(ctx context.Context, records []*attendance.Record) error {
	for _, rec := range records {
		_, err := r.q.ExecContext(ctx, `INSERT INTO attendance_records (`+attendanceColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				status = excluded.status,
				hours_required = excluded.hours_required,
				hours_attended = excluded.hours_attended,
				notes = excluded.notes,
				updated_at = excluded.updated_at`,
			rec.ID, rec.StudentID, rec.Date, string(rec.Type), string(rec.Status),
			rec.HoursRequired, rec.HoursAttended, rec.Notes, toUnix(rec.CreatedAt), toUnix(rec.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert attendance %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (r *attendanceRepo) list(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	out := make([]*attendance.Record, 0)
	for rows.Next() {
		var (
			rec              attendance.Record
			typ, status      string
			created, updated int64
		)
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &typ, &status,
			&rec.HoursRequired, &rec.HoursAttended, &rec.Notes, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Type = attendance.Type(typ)
		rec.Status = attendance.Status(status)
		rec.CreatedAt, rec.UpdatedAt = fromUnix(created), fromUnix(updated)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
