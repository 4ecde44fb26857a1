package query

import (
	"context"
	"strings"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT HOURS SUMMARY QUERY
// Aggregates a student's clinical logs and classifies the result. Both steps
// are pure; the optional cache only saves the store round trip and the fold.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentHoursSummaryQuery identifies the student.
type GetStudentHoursSummaryQuery struct {
	StudentID string

	// SkipCache forces a fresh aggregation.
	SkipCache bool
}

// Validate validates the query.
func (q GetStudentHoursSummaryQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return shared.NewValidationError("query.GetStudentHoursSummary", -1, "", "student_id", "is required")
	}
	return nil
}

// HoursSummaryCache stores computed summaries per student. Entries are
// dropped when a log of the student is added or reviewed.
type HoursSummaryCache interface {
	GetHoursSummary(ctx context.Context, studentID string) (*StudentHoursDTO, bool, error)
	SetHoursSummary(ctx context.Context, summary *StudentHoursDTO) error
	InvalidateStudent(ctx context.Context, studentID string) error
}

// GetStudentHoursSummaryHandler handles the GetStudentHoursSummaryQuery.
type GetStudentHoursSummaryHandler struct {
	store      uow.Store
	classifier *compliance.Classifier
	policy     clinical.CountingPolicy
	cache      HoursSummaryCache
	log        *logger.Logger
}

// NewGetStudentHoursSummaryHandler creates a new handler. cache may be nil.
func NewGetStudentHoursSummaryHandler(
	store uow.Store,
	classifier *compliance.Classifier,
	policy clinical.CountingPolicy,
	cache HoursSummaryCache,
	log *logger.Logger,
) *GetStudentHoursSummaryHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetStudentHoursSummaryHandler{
		store:      store,
		classifier: classifier,
		policy:     policy,
		cache:      cache,
		log:        log.With(logger.Component("get_student_hours_summary")),
	}
}

// Handle executes the query.
func (h *GetStudentHoursSummaryHandler) Handle(ctx context.Context, q GetStudentHoursSummaryQuery) (*StudentHoursDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	studentID := strings.TrimSpace(q.StudentID)

	if h.cache != nil && !q.SkipCache {
		cached, ok, err := h.cache.GetHoursSummary(ctx, studentID)
		if err != nil {
			h.log.Warn("hours cache read failed", logger.StudentID(studentID), logger.Err(err))
		} else if ok {
			return cached, nil
		}
	}

	entries, err := h.store.ClinicalLogs().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		known, err := studentKnown(ctx, h.store, studentID)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, shared.NotFound("query", "GetStudentHoursSummary", "student", studentID)
		}
	}

	summary := Summarize(studentID, entries, h.classifier, h.policy)

	if h.cache != nil {
		if err := h.cache.SetHoursSummary(ctx, summary); err != nil {
			h.log.Warn("hours cache write failed", logger.StudentID(studentID), logger.Err(err))
		}
	}
	return summary, nil
}

// Summarize composes the aggregator and the classifier.
func Summarize(studentID string, entries []*clinical.LogEntry, classifier *compliance.Classifier, policy clinical.CountingPolicy) *StudentHoursDTO {
	b := clinical.Aggregate(studentID, entries, policy)
	return &StudentHoursDTO{
		Breakdown:     b,
		Assessment:    classifier.Assess(b),
		RequiredHours: classifier.Thresholds().RequiredTotalHours,
		ApprovedOnly:  policy == clinical.CountApprovedOnly,
	}
}

// studentKnown reports whether any record of the student exists. There is
// no student directory; a student exists once something was recorded for
// them.
func studentKnown(ctx context.Context, store uow.Store, studentID string) (bool, error) {
	logs, err := store.ClinicalLogs().ListByStudent(ctx, studentID)
	if err != nil || len(logs) > 0 {
		return len(logs) > 0, err
	}
	att, err := store.Attendance().ListByStudent(ctx, studentID)
	if err != nil || len(att) > 0 {
		return len(att) > 0, err
	}
	mk, err := store.Makeup().ListByStudent(ctx, studentID)
	return len(mk) > 0, err
}
