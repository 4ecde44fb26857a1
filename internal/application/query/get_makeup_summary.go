package query

import (
	"context"
	"strings"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAKEUP LEDGER QUERIES
// Per-student summary and the cohort view sorted by outstanding balance.
// ══════════════════════════════════════════════════════════════════════════════

// GetMakeupHoursSummaryQuery identifies the student.
type GetMakeupHoursSummaryQuery struct {
	StudentID string
}

// GetMakeupHoursSummaryHandler handles the GetMakeupHoursSummaryQuery.
type GetMakeupHoursSummaryHandler struct {
	store uow.Store
	today func() string
}

// NewGetMakeupHoursSummaryHandler creates a new handler. today defaults to
// timeutil.Today.
func NewGetMakeupHoursSummaryHandler(store uow.Store, today func() string) *GetMakeupHoursSummaryHandler {
	if today == nil {
		today = timeutil.Today
	}
	return &GetMakeupHoursSummaryHandler{store: store, today: today}
}

// Handle executes the query.
func (h *GetMakeupHoursSummaryHandler) Handle(ctx context.Context, q GetMakeupHoursSummaryQuery) (*MakeupSummaryDTO, error) {
	studentID := strings.TrimSpace(q.StudentID)
	if studentID == "" {
		return nil, shared.NewValidationError("query.GetMakeupHoursSummary", -1, "", "student_id", "is required")
	}

	records, err := h.store.Makeup().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		known, err := studentKnown(ctx, h.store, studentID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, shared.NotFound("query", "GetMakeupHoursSummary", "student", studentID)
		}
	}

	today := h.today()
	dto := MakeupSummaryFromDomain(makeup.Summarize(studentID, records, today), today)
	return &dto, nil
}

// ListMakeupSummariesQuery filters the cohort view.
type ListMakeupSummariesQuery struct {
	// OutstandingOnly drops students whose balance is zero.
	OutstandingOnly bool

	// Limit caps the number of summaries, 0 means no limit.
	Limit int
}

// ListMakeupSummariesHandler handles the ListMakeupSummariesQuery.
type ListMakeupSummariesHandler struct {
	store uow.Store
	today func() string
}

// NewListMakeupSummariesHandler creates a new handler.
func NewListMakeupSummariesHandler(store uow.Store, today func() string) *ListMakeupSummariesHandler {
	if today == nil {
		today = timeutil.Today
	}
	return &ListMakeupSummariesHandler{store: store, today: today}
}

// Handle returns one summary per student with any obligation, largest
// balance first.
func (h *ListMakeupSummariesHandler) Handle(ctx context.Context, q ListMakeupSummariesQuery) ([]MakeupSummaryDTO, error) {
	if q.Limit < 0 {
		return nil, shared.NewValidationError("query.ListMakeupSummaries", -1, "", "limit", "must not be negative")
	}

	records, err := h.store.Makeup().ListAll(ctx)
	if err != nil {
		return nil, err
	}

	today := h.today()
	out := make([]MakeupSummaryDTO, 0)
	for _, s := range makeup.SummarizeAll(records, today) {
		if q.OutstandingOnly && s.BalanceRemaining <= 0 {
			continue
		}
		out = append(out, MakeupSummaryFromDomain(s, today))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
