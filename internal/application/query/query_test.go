package query_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/memory"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

var (
	ctx        = context.Background()
	classifier = compliance.NewClassifier(compliance.DefaultThresholds())
	today      = func() string { return "2024-03-15" }
	quiet      = logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
)

func seedLogs(t *testing.T, store *memory.Store, entries ...*clinical.LogEntry) {
	t.Helper()
	for _, e := range entries {
		require.NoError(t, store.ClinicalLogs().Create(ctx, e))
	}
}

func logEntry(id, site string, hours float64, sim bool, status clinical.LogStatus) *clinical.LogEntry {
	return &clinical.LogEntry{
		ID: id, StudentID: "s1", Date: "2024-03-01", SiteName: site,
		Hours: hours, IsSimulation: sim, Status: status,
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

type mapCache struct {
	data map[string]*query.StudentHoursDTO
	sets int
}

func (c *mapCache) GetHoursSummary(_ context.Context, id string) (*query.StudentHoursDTO, bool, error) {
	v, ok := c.data[id]
	return v, ok, nil
}

func (c *mapCache) SetHoursSummary(_ context.Context, s *query.StudentHoursDTO) error {
	c.sets++
	c.data[s.StudentID] = s
	return nil
}

func (c *mapCache) InvalidateStudent(_ context.Context, id string) error {
	delete(c.data, id)
	return nil
}

func TestGetStudentHoursSummary(t *testing.T) {
	store := memory.NewStore()
	seedLogs(t, store,
		logEntry("l1", "General", 300, false, clinical.LogStatusApproved),
		logEntry("l2", "Sim Lab", 90, true, clinical.LogStatusApproved),
		logEntry("l3", "Sim Lab", 20, true, clinical.LogStatusPending),
		logEntry("l4", "General", 50, false, clinical.LogStatusRejected),
	)
	h := query.NewGetStudentHoursSummaryHandler(store, classifier, clinical.CountPendingAndApproved, nil, quiet)

	s, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, 410.0, s.TotalHours)
	assert.Equal(t, 300.0, s.DirectHours)
	assert.Equal(t, 110.0, s.SimHours)
	assert.Equal(t, 27, s.SimPercentage)
	assert.Equal(t, compliance.SimStatusOverCap, s.SimStatus)
	assert.False(t, s.IsCompliant)
	assert.Equal(t, compliance.ProgressComplianceRisk, s.ProgressStatus)
	assert.Equal(t, 400.0, s.RequiredHours)
	require.Len(t, s.HoursBySite, 2)
	assert.Equal(t, "General", s.HoursBySite[0].SiteName)
}

func TestGetStudentHoursSummary_ApprovedOnly(t *testing.T) {
	store := memory.NewStore()
	seedLogs(t, store,
		logEntry("l1", "General", 8, false, clinical.LogStatusApproved),
		logEntry("l2", "General", 8, false, clinical.LogStatusPending),
	)
	h := query.NewGetStudentHoursSummaryHandler(store, classifier, clinical.CountApprovedOnly, nil, quiet)

	s, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 8.0, s.TotalHours)
	assert.Equal(t, 1, s.Excluded)
	assert.True(t, s.ApprovedOnly)
}

func TestGetStudentHoursSummary_UnknownStudent(t *testing.T) {
	h := query.NewGetStudentHoursSummaryHandler(memory.NewStore(), classifier, clinical.CountPendingAndApproved, nil, quiet)

	_, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, query.GetStudentHoursSummaryQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestGetStudentHoursSummary_KnownStudentWithoutLogs(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Attendance().UpsertBatch(ctx, []*attendance.Record{{
		ID: "ATT-s1", StudentID: "s1", Date: "2024-03-01", Type: attendance.TypeClinical,
		Status: attendance.StatusPresent, HoursRequired: 8,
	}}))
	h := query.NewGetStudentHoursSummaryHandler(store, classifier, clinical.CountPendingAndApproved, nil, quiet)

	s, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, s.TotalHours)
	assert.Equal(t, compliance.ProgressBehind, s.ProgressStatus)
}

func TestGetStudentHoursSummary_UsesCache(t *testing.T) {
	store := memory.NewStore()
	seedLogs(t, store, logEntry("l1", "General", 8, false, clinical.LogStatusApproved))
	cache := &mapCache{data: map[string]*query.StudentHoursDTO{}}
	h := query.NewGetStudentHoursSummaryHandler(store, classifier, clinical.CountPendingAndApproved, cache, quiet)

	first, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)
	seedLogs(t, store, logEntry("l2", "General", 8, false, clinical.LogStatusApproved))

	cached, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Same(t, first, cached)

	require.NoError(t, cache.InvalidateStudent(ctx, "s1"))
	fresh, err := h.Handle(ctx, query.GetStudentHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 16.0, fresh.TotalHours)
	assert.Equal(t, 2, cache.sets)
}

func seedMakeup(t *testing.T, store *memory.Store, records ...*makeup.Record) {
	t.Helper()
	for _, r := range records {
		require.NoError(t, store.Makeup().Create(ctx, r))
	}
}

func TestMakeupSummaries(t *testing.T) {
	store := memory.NewStore()
	seedMakeup(t, store,
		&makeup.Record{ID: "MKP-1", StudentID: "s1", HoursOwed: 8, HoursCompleted: 2, Status: makeup.StatusInProgress, DueDate: "2024-03-10"},
		&makeup.Record{ID: "MKP-2", StudentID: "s1", HoursOwed: 4, Status: makeup.StatusPending, DueDate: "2024-04-01"},
		&makeup.Record{ID: "MKP-3", StudentID: "s2", HoursOwed: 2, HoursCompleted: 2, Status: makeup.StatusCompleted},
		&makeup.Record{ID: "MKP-4", StudentID: "s3", HoursOwed: 1, Status: makeup.StatusPending},
	)

	one, err := query.NewGetMakeupHoursSummaryHandler(store, today).Handle(ctx, query.GetMakeupHoursSummaryQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, one.TotalHoursOwed)
	assert.Equal(t, 2.0, one.TotalHoursCompleted)
	assert.Equal(t, 10.0, one.BalanceRemaining)
	assert.Equal(t, 1, one.OverdueCount)
	require.Len(t, one.Records, 2)
	assert.True(t, one.Records[0].IsOverdue)
	assert.Equal(t, 6.0, one.Records[0].HoursRemaining)

	_, err = query.NewGetMakeupHoursSummaryHandler(store, today).Handle(ctx, query.GetMakeupHoursSummaryQuery{StudentID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	list := query.NewListMakeupSummariesHandler(store, today)
	all, err := list.Handle(ctx, query.ListMakeupSummariesQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"s1", "s3", "s2"}, []string{all[0].StudentID, all[1].StudentID, all[2].StudentID})

	outstanding, err := list.Handle(ctx, query.ListMakeupSummariesQuery{OutstandingOnly: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, "s1", outstanding[0].StudentID)
}

func TestGetStudentFlags(t *testing.T) {
	store := memory.NewStore()
	seedLogs(t, store, logEntry("l1", "Sim Lab", 90, true, clinical.LogStatusApproved))
	var absences []*attendance.Record
	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		absences = append(absences, &attendance.Record{
			ID: attendance.RecordID("s1", d, attendance.TypeClinical), StudentID: "s1", Date: d,
			Type: attendance.TypeClinical, Status: attendance.StatusAbsent, HoursRequired: 8,
		})
	}
	require.NoError(t, store.Attendance().UpsertBatch(ctx, absences))
	seedMakeup(t, store, &makeup.Record{ID: "MKP-1", StudentID: "s1", HoursOwed: 8, Status: makeup.StatusPending, DueDate: "2024-03-01"})

	h := query.NewGetStudentFlagsHandler(store, classifier, clinical.CountPendingAndApproved, today)
	dto, err := h.Handle(ctx, query.GetStudentFlagsQuery{StudentID: "s1"})
	require.NoError(t, err)

	types := make([]compliance.FlagType, len(dto.Flags))
	for i, f := range dto.Flags {
		types[i] = f.Type
	}
	assert.Equal(t, []compliance.FlagType{
		compliance.FlagMakeupOverdue,
		compliance.FlagSimulationOver,
		compliance.FlagAttendance,
		compliance.FlagClinicalBehind,
		compliance.FlagMakeupOutstanding,
	}, types)
	assert.Equal(t, compliance.SeverityCritical, dto.Highest)

	_, err = h.Handle(ctx, query.GetStudentFlagsQuery{StudentID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}

func TestAttendanceQueries(t *testing.T) {
	store := memory.NewStore()
	var recs []*attendance.Record
	add := func(student, date string, typ attendance.Type, status attendance.Status) {
		recs = append(recs, &attendance.Record{
			ID: attendance.RecordID(student, date, typ), StudentID: student, Date: date,
			Type: typ, Status: status, HoursRequired: 8,
		})
	}
	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"} {
		add("s1", d, attendance.TypeClinical, attendance.StatusAbsent)
	}
	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		add("s2", d, attendance.TypeClassroom, attendance.StatusAbsent)
	}
	add("s3", "2024-03-01", attendance.TypeClinical, attendance.StatusPresent)
	require.NoError(t, store.Attendance().UpsertBatch(ctx, recs))

	issues, err := query.NewGetAttendanceIssuesHandler(store, compliance.DefaultThresholds()).
		Handle(ctx, query.GetAttendanceIssuesQuery{})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "s1", issues[0].StudentID)
	assert.Equal(t, 5, issues[0].Absent)
	assert.Equal(t, compliance.SeverityCritical, issues[0].Severity)
	assert.Equal(t, compliance.SeverityWarning, issues[1].Severity)

	clinicalOnly, err := query.NewGetAttendanceIssuesHandler(store, compliance.DefaultThresholds()).
		Handle(ctx, query.GetAttendanceIssuesQuery{MinAbsences: 1, Type: "clinical"})
	require.NoError(t, err)
	require.Len(t, clinicalOnly, 1)

	day, err := query.NewListAttendanceDayHandler(store).Handle(ctx, query.ListAttendanceDayQuery{Date: "2024-03-01", Type: "CLINICAL"})
	require.NoError(t, err)
	assert.Len(t, day, 2)

	_, err = query.NewListAttendanceDayHandler(store).Handle(ctx, query.ListAttendanceDayQuery{Date: "yesterday"})
	assert.True(t, shared.IsValidation(err))
}

func TestListClinicalLogs(t *testing.T) {
	store := memory.NewStore()
	seedLogs(t, store,
		logEntry("l2", "A", 8, false, clinical.LogStatusPending),
		logEntry("l1", "B", 8, false, clinical.LogStatusApproved),
	)
	h := query.NewListClinicalLogsHandler(store)

	all, err := h.Handle(ctx, query.ListClinicalLogsQuery{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "l1", all[0].ID)

	pending, err := h.Handle(ctx, query.ListClinicalLogsQuery{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l2", pending[0].ID)

	_, err = h.Handle(ctx, query.ListClinicalLogsQuery{})
	assert.True(t, shared.IsValidation(err))
}
