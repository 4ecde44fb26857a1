package attendance

import (
	"math"
	"strings"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAY SUBMISSION
// Turns one day's entries into records. Every entry is checked before any
// record is returned, so a caller either gets the whole day or a
// ValidationError listing every offending entry.
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one row of a day's attendance sheet.
type Entry struct {
	StudentID     string
	Status        Status
	HoursAttended *float64
	// HoursRequired overrides the required hours for this entry only.
	HoursRequired *float64
	Notes         string
}

// ShiftDefaults holds the required hours when nothing else applies.
type ShiftDefaults struct {
	Clinical  float64
	Classroom float64
}

// DefaultShiftDefaults returns 8 clinical and 4 classroom hours.
func DefaultShiftDefaults() ShiftDefaults {
	return ShiftDefaults{Clinical: 8, Classroom: 4}
}

// For returns the default required hours for t.
func (d ShiftDefaults) For(t Type) float64 {
	if t == TypeClassroom {
		return d.Classroom
	}
	return d.Clinical
}

// Day is a validated submission ready to persist.
type Day struct {
	Date    string
	Type    Type
	Records []*Record
}

const opRecordDay = "attendance.RecordDay"

// BuildDay validates entries and resolves each record's required hours:
// the entry override wins, then the prior record for the same key, then
// the type default. prior maps record id to the stored record.
func BuildDay(date string, t Type, entries []Entry, prior map[string]*Record, defaults ShiftDefaults, now time.Time) (*Day, error) {
	ve := &shared.ValidationError{Op: opRecordDay}

	if !timeutil.IsValidDate(date) {
		ve.Add(-1, "", "date", "must be a calendar date in YYYY-MM-DD format")
	}
	if parsed, ok := ParseType(string(t)); ok {
		t = parsed
	} else {
		ve.Add(-1, "", "attendance_type", "must be classroom or clinical")
	}
	if len(entries) == 0 {
		ve.Add(-1, "", "entries", "must contain at least one entry")
	}
	if ve.HasViolations() {
		return nil, ve
	}

	seen := make(map[string]int, len(entries))
	records := make([]*Record, 0, len(entries))

	for i, e := range entries {
		studentID := strings.TrimSpace(e.StudentID)
		if studentID == "" {
			ve.Add(i, "", "student_id", "is required")
			continue
		}
		if first, dup := seen[studentID]; dup {
			ve.Add(i, studentID, "student_id", "appears more than once (first at entry "+itoa(first)+")")
			continue
		}
		seen[studentID] = i

		status, ok := ParseStatus(string(e.Status))
		if !ok {
			ve.Add(i, studentID, "status", "must be one of Present, Absent, Tardy, Excused, Partial")
			continue
		}

		id := RecordID(studentID, date, t)
		required := defaults.For(t)
		if p, ok := prior[id]; ok && p.HoursRequired > 0 {
			required = p.HoursRequired
		}
		if e.HoursRequired != nil {
			if !isFinite(*e.HoursRequired) || *e.HoursRequired <= 0 {
				ve.Add(i, studentID, "hours_required", "must be greater than zero")
				continue
			}
			required = *e.HoursRequired
		}

		var attended *float64
		if status == StatusPartial {
			switch {
			case e.HoursAttended == nil:
				ve.Add(i, studentID, "hours_attended", "is required when status is Partial")
				continue
			case !isFinite(*e.HoursAttended) || *e.HoursAttended < 0 || *e.HoursAttended > required:
				ve.Add(i, studentID, "hours_attended", "must be between 0 and "+ftoa(required))
				continue
			}
			h := *e.HoursAttended
			attended = &h
		} else if e.HoursAttended != nil {
			ve.Add(i, studentID, "hours_attended", "is only allowed when status is Partial")
			continue
		}

		rec := &Record{
			ID:            id,
			StudentID:     studentID,
			Date:          date,
			Type:          t,
			Status:        status,
			HoursRequired: required,
			HoursAttended: attended,
			Notes:         strings.TrimSpace(e.Notes),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if p, ok := prior[id]; ok && !p.CreatedAt.IsZero() {
			rec.CreatedAt = p.CreatedAt
		}
		records = append(records, rec)
	}

	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return &Day{Date: date, Type: t, Records: records}, nil
}

// Derives reports whether records of this day feed makeup derivation.
func (d *Day) Derives() bool {
	return d.Type == TypeClinical
}

// StudentIDs returns the students of the day in submission order.
func (d *Day) StudentIDs() []string {
	ids := make([]string, len(d.Records))
	for i, r := range d.Records {
		ids[i] = r.StudentID
	}
	return ids
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
