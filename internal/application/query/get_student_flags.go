package query

import (
	"context"
	"strings"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT FLAGS QUERY
// Evaluates every alert rule for one student: clinical progress, simulation
// cap, absences and makeup balance.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentFlagsQuery identifies the student.
type GetStudentFlagsQuery struct {
	StudentID string
}

// GetStudentFlagsHandler handles the GetStudentFlagsQuery.
type GetStudentFlagsHandler struct {
	store      uow.Store
	classifier *compliance.Classifier
	policy     clinical.CountingPolicy
	today      func() string
}

// NewGetStudentFlagsHandler creates a new handler.
func NewGetStudentFlagsHandler(store uow.Store, classifier *compliance.Classifier, policy clinical.CountingPolicy, today func() string) *GetStudentFlagsHandler {
	if today == nil {
		today = timeutil.Today
	}
	return &GetStudentFlagsHandler{store: store, classifier: classifier, policy: policy, today: today}
}

// Handle executes the query.
func (h *GetStudentFlagsHandler) Handle(ctx context.Context, q GetStudentFlagsQuery) (*StudentFlagsDTO, error) {
	studentID := strings.TrimSpace(q.StudentID)
	if studentID == "" {
		return nil, shared.NewValidationError("query.GetStudentFlags", -1, "", "student_id", "is required")
	}

	logs, err := h.store.ClinicalLogs().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := h.store.Attendance().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	obligations, err := h.store.Makeup().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 && len(records) == 0 && len(obligations) == 0 {
		return nil, shared.NotFound("query", "GetStudentFlags", "student", studentID)
	}

	b := clinical.Aggregate(studentID, logs, h.policy)
	tally := attendance.StudentTally{StudentID: studentID}
	for _, r := range records {
		tally.Add(r)
	}
	ledger := makeup.Summarize(studentID, obligations, h.today())

	flags := h.classifier.Flags(compliance.FlagInput{
		TotalHours:     b.TotalHours,
		SimHours:       b.SimHours,
		SimPercentage:  b.SimPercentage,
		Absences:       tally.Absent,
		MakeupBalance:  ledger.BalanceRemaining,
		OverdueMakeups: ledger.OverdueCount,
	})

	dto := &StudentFlagsDTO{StudentID: studentID, Flags: flags}
	if len(flags) > 0 {
		dto.Highest = flags[0].Severity
	}
	return dto, nil
}
