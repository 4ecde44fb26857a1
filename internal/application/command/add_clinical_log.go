package command

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/clinical"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD CLINICAL LOG COMMAND
// A student reports one clinical shift. New logs start Pending.
// ══════════════════════════════════════════════════════════════════════════════

// MaxShiftHours caps a single log entry.
const MaxShiftHours = 24

// AddClinicalLogCommand contains a new clinical log.
type AddClinicalLogCommand struct {
	StudentID    string
	Date         string
	SiteName     string
	Hours        float64
	IsSimulation bool
	IsMakeup     bool
	Description  string

	CorrelationID string
}

// Validate validates the command.
func (c AddClinicalLogCommand) Validate() error {
	ve := &shared.ValidationError{Op: "clinical.AddLog"}
	if strings.TrimSpace(c.StudentID) == "" {
		ve.Add(-1, "", "student_id", "is required")
	}
	if !timeutil.IsValidDate(c.Date) {
		ve.Add(-1, c.StudentID, "date", "must be a calendar date in YYYY-MM-DD format")
	}
	if strings.TrimSpace(c.SiteName) == "" {
		ve.Add(-1, c.StudentID, "site_name", "is required")
	}
	if math.IsNaN(c.Hours) || c.Hours <= 0 || c.Hours > MaxShiftHours {
		ve.Add(-1, c.StudentID, "hours", "must be greater than 0 and at most 24")
	}
	return ve.OrNil()
}

// AddClinicalLogHandler handles the AddClinicalLogCommand.
type AddClinicalLogHandler struct {
	store          uow.Store
	eventPublisher shared.EventPublisher
	now            func() time.Time
	log            *logger.Logger
}

// NewAddClinicalLogHandler creates a new AddClinicalLogHandler.
func NewAddClinicalLogHandler(store uow.Store, eventPublisher shared.EventPublisher, now func() time.Time, log *logger.Logger) *AddClinicalLogHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Default()
	}
	return &AddClinicalLogHandler{
		store:          store,
		eventPublisher: eventPublisher,
		now:            now,
		log:            log.With(logger.Component("add_clinical_log")),
	}
}

// Handle executes the command and returns the stored entry.
func (h *AddClinicalLogHandler) Handle(ctx context.Context, cmd AddClinicalLogCommand) (*clinical.LogEntry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.now()
	entry := &clinical.LogEntry{
		ID:           uuid.NewString(),
		StudentID:    strings.TrimSpace(cmd.StudentID),
		Date:         cmd.Date,
		SiteName:     strings.TrimSpace(cmd.SiteName),
		Hours:        cmd.Hours,
		IsSimulation: cmd.IsSimulation,
		IsMakeup:     cmd.IsMakeup,
		Status:       clinical.LogStatusPending,
		Description:  strings.TrimSpace(cmd.Description),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.ClinicalLogs().Create(ctx, entry); err != nil {
		return nil, err
	}

	event := shared.NewClinicalLogAddedEvent(entry.ID, entry.StudentID, entry.SiteName, entry.Hours, entry.IsSimulation)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	if err := publishAll(h.eventPublisher, []shared.Event{event}); err != nil {
		h.log.Warn("failed to publish clinical log event", logger.RecordID(entry.ID), logger.Err(err))
	}

	h.log.Info("clinical log added",
		logger.RecordID(entry.ID),
		logger.StudentID(entry.StudentID),
		logger.Hours(entry.Hours),
		logger.Bool("simulation", entry.IsSimulation),
	)
	return entry, nil
}
