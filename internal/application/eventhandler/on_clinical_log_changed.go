// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CLINICAL LOG CHANGED HANDLER
// Drops the cached hours summary of a student when one of their logs is
// added or reviewed, so the next summary read aggregates fresh data.
// ═══════════════════════════════════════════════════════════════════════════

// OnClinicalLogChangedHandler invalidates cached hours summaries.
type OnClinicalLogChangedHandler struct {
	cache   query.HoursSummaryCache
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnClinicalLogChangedHandler creates the handler.
func NewOnClinicalLogChangedHandler(cache query.HoursSummaryCache, logger *slog.Logger) *OnClinicalLogChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnClinicalLogChangedHandler{
		cache:   cache,
		timeout: 2 * time.Second,
		logger:  logger.With("handler", "on_clinical_log_changed"),
	}
}

// EventTypes lists the events this handler subscribes to.
func (h *OnClinicalLogChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventClinicalLogAdded, shared.EventClinicalLogReviewed}
}

// Handle implements shared.EventHandler. It reads the student from the
// payload so events replayed from another instance are handled the same way.
func (h *OnClinicalLogChangedHandler) Handle(event shared.Event) error {
	studentID, _ := event.Payload()["student_id"].(string)
	if studentID == "" {
		h.logger.Warn("event without student_id", "event_type", event.EventType(), "aggregate_id", event.AggregateID())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateStudent(ctx, studentID); err != nil {
		return fmt.Errorf("invalidate hours summary of %s: %w", studentID, err)
	}

	h.logger.Debug("hours summary invalidated",
		"student_id", studentID,
		"event_type", event.EventType(),
		"log_id", event.AggregateID(),
	)
	return nil
}
