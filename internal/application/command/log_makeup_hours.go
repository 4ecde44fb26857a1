package command

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG MAKEUP HOURS COMMAND
// Applies completed hours to one obligation. The write is a compare-and-set
// on the record version; a concurrent writer makes this call fail with
// ErrOptimisticLock and nothing is retried.
// ══════════════════════════════════════════════════════════════════════════════

// LogMakeupHoursCommand contains the hours to log.
type LogMakeupHoursCommand struct {
	// RecordID is the makeup record id.
	RecordID string

	// Hours is the number of hours completed, must be positive.
	Hours float64

	// Notes optionally replaces the record notes.
	Notes string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c LogMakeupHoursCommand) Validate() error {
	ve := &shared.ValidationError{Op: "makeup.LogHours"}
	if strings.TrimSpace(c.RecordID) == "" {
		ve.Add(-1, "", "record_id", "is required")
	}
	if math.IsNaN(c.Hours) || math.IsInf(c.Hours, 0) || c.Hours <= 0 {
		ve.Add(-1, "", "hours", "must be greater than zero")
	}
	return ve.OrNil()
}

// LogMakeupHoursHandler handles the LogMakeupHoursCommand.
type LogMakeupHoursHandler struct {
	store          uow.Store
	eventPublisher shared.EventPublisher
	now            func() time.Time
	log            *logger.Logger
}

// NewLogMakeupHoursHandler creates a new LogMakeupHoursHandler.
func NewLogMakeupHoursHandler(store uow.Store, eventPublisher shared.EventPublisher, now func() time.Time, log *logger.Logger) *LogMakeupHoursHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Default()
	}
	return &LogMakeupHoursHandler{
		store:          store,
		eventPublisher: eventPublisher,
		now:            now,
		log:            log.With(logger.Component("log_makeup_hours")),
	}
}

// Handle executes the command and returns the updated record.
func (h *LogMakeupHoursHandler) Handle(ctx context.Context, cmd LogMakeupHoursCommand) (*makeup.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	rec, err := h.store.Makeup().GetByID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}
	expected := rec.Version

	if err := rec.LogHours(cmd.Hours, h.now()); err != nil {
		return nil, err
	}
	if note := strings.TrimSpace(cmd.Notes); note != "" {
		rec.Notes = note
	}

	if err := h.store.Makeup().Update(ctx, rec, expected); err != nil {
		return nil, err
	}

	event := shared.NewMakeupHoursLoggedEvent(rec.ID, rec.StudentID, cmd.Hours, rec.HoursCompleted, rec.HoursOwed)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	if err := publishAll(h.eventPublisher, []shared.Event{event}); err != nil {
		h.log.Warn("failed to publish makeup event", logger.RecordID(rec.ID), logger.Err(err))
	}

	h.log.Info("makeup hours logged",
		logger.RecordID(rec.ID),
		logger.StudentID(rec.StudentID),
		logger.Hours(cmd.Hours),
		logger.String("status", string(rec.Status)),
	)
	return rec, nil
}
