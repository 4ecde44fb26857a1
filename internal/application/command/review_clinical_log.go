package command

import (
	"context"
	"strings"
	"time"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW CLINICAL LOG COMMAND
// An instructor approves or rejects a pending log.
// ══════════════════════════════════════════════════════════════════════════════

// ReviewClinicalLogCommand contains a review decision.
type ReviewClinicalLogCommand struct {
	LogID      string
	Status     string
	Feedback   string
	ReviewedBy string

	CorrelationID string
}

// Validate validates the command.
func (c ReviewClinicalLogCommand) Validate() (clinical.LogStatus, error) {
	ve := &shared.ValidationError{Op: "clinical.Review"}
	if strings.TrimSpace(c.LogID) == "" {
		ve.Add(-1, "", "log_id", "is required")
	}
	status, ok := clinical.ParseLogStatus(c.Status)
	if !ok || status == clinical.LogStatusPending {
		ve.Add(-1, "", "status", "must be Approved or Rejected")
	}
	return status, ve.OrNil()
}

// ReviewClinicalLogHandler handles the ReviewClinicalLogCommand.
type ReviewClinicalLogHandler struct {
	store          uow.Store
	eventPublisher shared.EventPublisher
	now            func() time.Time
	log            *logger.Logger
}

// NewReviewClinicalLogHandler creates a new ReviewClinicalLogHandler.
func NewReviewClinicalLogHandler(store uow.Store, eventPublisher shared.EventPublisher, now func() time.Time, log *logger.Logger) *ReviewClinicalLogHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Default()
	}
	return &ReviewClinicalLogHandler{
		store:          store,
		eventPublisher: eventPublisher,
		now:            now,
		log:            log.With(logger.Component("review_clinical_log")),
	}
}

// Handle executes the command and returns the reviewed entry.
func (h *ReviewClinicalLogHandler) Handle(ctx context.Context, cmd ReviewClinicalLogCommand) (*clinical.LogEntry, error) {
	status, err := cmd.Validate()
	if err != nil {
		return nil, err
	}

	entry, err := h.store.ClinicalLogs().GetByID(ctx, cmd.LogID)
	if err != nil {
		return nil, err
	}
	expected := entry.Status

	reviewer := strings.TrimSpace(cmd.ReviewedBy)
	if status == clinical.LogStatusApproved {
		err = entry.Approve(reviewer, h.now())
	} else {
		err = entry.Reject(reviewer, strings.TrimSpace(cmd.Feedback), h.now())
	}
	if err != nil {
		return nil, err
	}

	if err := h.store.ClinicalLogs().UpdateStatus(ctx, entry, expected); err != nil {
		return nil, err
	}

	event := shared.NewClinicalLogReviewedEvent(entry.ID, entry.StudentID, string(entry.Status))
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	if err := publishAll(h.eventPublisher, []shared.Event{event}); err != nil {
		h.log.Warn("failed to publish clinical log event", logger.RecordID(entry.ID), logger.Err(err))
	}

	h.log.Info("clinical log reviewed",
		logger.RecordID(entry.ID),
		logger.StudentID(entry.StudentID),
		logger.String("status", string(entry.Status)),
	)
	return entry, nil
}
