package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	q    Querier
	lock bool
}

const attendanceColumns = `
	id, student_id, attendance_date::text, attendance_type, status,
	hours_required::float8, hours_attended::float8, notes, created_at, updated_at`

// ListByDate returns the records of one day, optionally of one type.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string, t attendance.Type) ([]*attendance.Record, error) {
	return r.list(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE attendance_date = $1::date AND ($2::text = '' OR attendance_type = $2::text)
		ORDER BY id`, date, string(t))
}

// ListByStudent returns every record of a student.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]*attendance.Record, error) {
	return r.list(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE student_id = $1
		ORDER BY attendance_date, id`, studentID)
}

// ListRange returns records of type t between from and to inclusive. Empty
// bounds and an empty type are unrestricted.
func (r *AttendanceRepository) ListRange(ctx context.Context, t attendance.Type, from, to string) ([]*attendance.Record, error) {
	return r.list(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE ($1::text = '' OR attendance_type = $1::text)
		  AND ($2::date IS NULL OR attendance_date >= $2::date)
		  AND ($3::date IS NULL OR attendance_date <= $3::date)
		ORDER BY attendance_date, id`+forUpdate(r.lock), string(t), nullableDate(from), nullableDate(to))
}

// GetByIDs returns the stored records among ids.
func (r *AttendanceRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*attendance.Record, error) {
	records, err := r.list(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE id = ANY($1)
		ORDER BY id`+forUpdate(r.lock), ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*attendance.Record, len(records))
	for _, rec := range records {
		out[rec.ID] = rec
	}
	return out, nil
}

// UpsertBatch inserts or replaces records by id in one round trip.
// created_at of an existing record is preserved.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []*attendance.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO attendance_records (
			id, student_id, attendance_date, attendance_type, status,
			hours_required, hours_attended, notes, created_at, updated_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			hours_required = EXCLUDED.hours_required,
			hours_attended = EXCLUDED.hours_attended,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.ID,
			rec.StudentID,
			rec.Date,
			string(rec.Type),
			string(rec.Status),
			rec.HoursRequired,
			rec.HoursAttended,
			rec.Notes,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()
	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert attendance %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (r *AttendanceRepository) list(ctx context.Context, query string, args ...any) ([]*attendance.Record, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	out := make([]*attendance.Record, 0)
	for rows.Next() {
		var (
			rec         attendance.Record
			typ, status string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.StudentID,
			&rec.Date,
			&typ,
			&status,
			&rec.HoursRequired,
			&rec.HoursAttended,
			&rec.Notes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.Type = attendance.Type(typ)
		rec.Status = attendance.Status(status)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// nullableDate maps an empty date to SQL NULL.
func nullableDate(date string) any {
	if date == "" {
		return nil
	}
	return date
}
