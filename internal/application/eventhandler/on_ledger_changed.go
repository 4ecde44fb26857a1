package eventhandler

import (
	"log/slog"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// LEDGER AUDIT HANDLER
// Writes one structured audit line for every change to attendance and the
// makeup ledger.
// ═══════════════════════════════════════════════════════════════════════════

// LedgerAuditHandler logs ledger-affecting events.
type LedgerAuditHandler struct {
	logger *slog.Logger
}

// NewLedgerAuditHandler creates the handler. logger should be the audit sink.
func NewLedgerAuditHandler(logger *slog.Logger) *LedgerAuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerAuditHandler{logger: logger.With("handler", "ledger_audit")}
}

// EventTypes lists the events this handler subscribes to.
func (h *LedgerAuditHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventAttendanceDayRecorded,
		shared.EventMakeupObligationDerived,
		shared.EventMakeupObligationRemoved,
		shared.EventMakeupObligationDeleted,
		shared.EventMakeupHoursLogged,
		shared.EventReconciliationCompleted,
	}
}

// Handle implements shared.EventHandler.
func (h *LedgerAuditHandler) Handle(event shared.Event) error {
	attrs := []any{
		"event_type", string(event.EventType()),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	}
	if id, ok := correlationOf(event); ok {
		attrs = append(attrs, "correlation_id", id)
	}

	payload := event.Payload()
	keys := sortedKeys(payload)
	for _, k := range keys {
		attrs = append(attrs, k, payload[k])
	}

	// Removals lower a balance.
	switch event.EventType() {
	case shared.EventMakeupObligationRemoved, shared.EventMakeupObligationDeleted:
		h.logger.Warn("ledger audit", attrs...)
	default:
		h.logger.Info("ledger audit", attrs...)
	}
	return nil
}
