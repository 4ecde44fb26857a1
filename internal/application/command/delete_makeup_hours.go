package command

import (
	"context"
	"strings"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE MAKEUP HOURS COMMAND
// Instructor override: removes an obligation entirely. No tombstone is kept,
// so a later re-derivation of the same attendance record recreates it.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteMakeupHoursCommand identifies the record to delete.
type DeleteMakeupHoursCommand struct {
	RecordID      string
	CorrelationID string
}

// DeleteMakeupHoursHandler handles the DeleteMakeupHoursCommand.
type DeleteMakeupHoursHandler struct {
	store          uow.Store
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewDeleteMakeupHoursHandler creates a new DeleteMakeupHoursHandler.
func NewDeleteMakeupHoursHandler(store uow.Store, eventPublisher shared.EventPublisher, log *logger.Logger) *DeleteMakeupHoursHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DeleteMakeupHoursHandler{
		store:          store,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("delete_makeup_hours")),
	}
}

// Handle executes the command.
func (h *DeleteMakeupHoursHandler) Handle(ctx context.Context, cmd DeleteMakeupHoursCommand) error {
	if strings.TrimSpace(cmd.RecordID) == "" {
		return shared.NewValidationError("makeup.Delete", -1, "", "record_id", "is required")
	}

	rec, err := h.store.Makeup().GetByID(ctx, cmd.RecordID)
	if err != nil {
		return err
	}
	if err := h.store.Makeup().Delete(ctx, rec.ID); err != nil {
		return err
	}

	event := shared.NewMakeupObligationDeletedEvent(rec.ID, rec.StudentID)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	if err := publishAll(h.eventPublisher, []shared.Event{event}); err != nil {
		h.log.Warn("failed to publish makeup event", logger.RecordID(rec.ID), logger.Err(err))
	}

	h.log.Info("makeup obligation deleted",
		logger.RecordID(rec.ID),
		logger.StudentID(rec.StudentID),
		logger.Hours(rec.Remaining()),
	)
	return nil
}
