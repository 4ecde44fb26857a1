package attendance

import (
	"context"
	"strconv"
)

// Repository is the record-store contract for attendance.
type Repository interface {
	// ListByDate returns the records of a day. An empty type returns both types.
	ListByDate(ctx context.Context, date string, t Type) ([]*Record, error)

	// ListByStudent returns every record of a student.
	ListByStudent(ctx context.Context, studentID string) ([]*Record, error)

	// ListRange returns records of type t with from <= date <= to.
	ListRange(ctx context.Context, t Type, from, to string) ([]*Record, error)

	// GetByIDs returns the stored records among ids, keyed by id.
	GetByIDs(ctx context.Context, ids []string) (map[string]*Record, error)

	// UpsertBatch inserts or replaces every record by id.
	UpsertBatch(ctx context.Context, records []*Record) error
}

// StudentTally counts outcomes for one student.
type StudentTally struct {
	StudentID string `json:"student_id"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
	Tardy     int    `json:"tardy"`
	Excused   int    `json:"excused"`
	Partial   int    `json:"partial"`
	Total     int    `json:"total"`
}

// Add counts one record.
func (t *StudentTally) Add(r *Record) {
	t.Total++
	switch r.Status {
	case StatusPresent:
		t.Present++
	case StatusAbsent:
		t.Absent++
	case StatusTardy:
		t.Tardy++
	case StatusExcused:
		t.Excused++
	case StatusPartial:
		t.Partial++
	}
}

func itoa(i int) string { return strconv.Itoa(i) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
