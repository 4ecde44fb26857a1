package query

import (
	"context"
	"sort"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ListAttendanceDayQuery selects one day. An empty Type returns both types.
type ListAttendanceDayQuery struct {
	Date string
	Type string
}

// ListAttendanceDayHandler handles the ListAttendanceDayQuery.
type ListAttendanceDayHandler struct {
	store uow.Store
}

// NewListAttendanceDayHandler creates a new handler.
func NewListAttendanceDayHandler(store uow.Store) *ListAttendanceDayHandler {
	return &ListAttendanceDayHandler{store: store}
}

// Handle executes the query.
func (h *ListAttendanceDayHandler) Handle(ctx context.Context, q ListAttendanceDayQuery) ([]AttendanceRecordDTO, error) {
	ve := &shared.ValidationError{Op: "query.ListAttendanceDay"}
	if !timeutil.IsValidDate(q.Date) {
		ve.Add(-1, "", "date", "must be a calendar date in YYYY-MM-DD format")
	}
	var t attendance.Type
	if q.Type != "" {
		parsed, ok := attendance.ParseType(q.Type)
		if !ok {
			ve.Add(-1, "", "attendance_type", "must be classroom or clinical")
		}
		t = parsed
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	records, err := h.store.Attendance().ListByDate(ctx, q.Date, t)
	if err != nil {
		return nil, err
	}
	return AttendanceRecordsFromDomain(records), nil
}

// GetAttendanceIssuesQuery filters students by absence count.
type GetAttendanceIssuesQuery struct {
	// MinAbsences is the minimum number of absences to report, at least 1.
	MinAbsences int

	// Type restricts the tally to one session type; empty counts both.
	Type string
}

// GetAttendanceIssuesHandler handles the GetAttendanceIssuesQuery.
type GetAttendanceIssuesHandler struct {
	store      uow.Store
	thresholds compliance.Thresholds
}

// NewGetAttendanceIssuesHandler creates a new handler.
func NewGetAttendanceIssuesHandler(store uow.Store, thresholds compliance.Thresholds) *GetAttendanceIssuesHandler {
	return &GetAttendanceIssuesHandler{store: store, thresholds: thresholds}
}

// Handle returns one tally per student with at least MinAbsences absences,
// most absences first.
func (h *GetAttendanceIssuesHandler) Handle(ctx context.Context, q GetAttendanceIssuesQuery) ([]AttendanceIssueDTO, error) {
	if q.MinAbsences == 0 {
		q.MinAbsences = h.thresholds.AbsenceWarningCount
	}
	ve := &shared.ValidationError{Op: "query.GetAttendanceIssues"}
	if q.MinAbsences < 1 {
		ve.Add(-1, "", "min_absences", "must be at least 1")
	}
	var t attendance.Type
	if q.Type != "" {
		parsed, ok := attendance.ParseType(q.Type)
		if !ok {
			ve.Add(-1, "", "attendance_type", "must be classroom or clinical")
		}
		t = parsed
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	records, err := h.store.Attendance().ListRange(ctx, t, "", "")
	if err != nil {
		return nil, err
	}

	tallies := make(map[string]*attendance.StudentTally)
	for _, r := range records {
		tally, ok := tallies[r.StudentID]
		if !ok {
			tally = &attendance.StudentTally{StudentID: r.StudentID}
			tallies[r.StudentID] = tally
		}
		tally.Add(r)
	}

	out := make([]AttendanceIssueDTO, 0)
	for _, tally := range tallies {
		if tally.Absent < q.MinAbsences {
			continue
		}
		issue := AttendanceIssueDTO{StudentTally: *tally}
		switch {
		case tally.Absent >= h.thresholds.AbsenceCriticalCount:
			issue.Severity = compliance.SeverityCritical
		case tally.Absent >= h.thresholds.AbsenceWarningCount:
			issue.Severity = compliance.SeverityWarning
		}
		out = append(out, issue)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Absent != out[j].Absent {
			return out[i].Absent > out[j].Absent
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}
