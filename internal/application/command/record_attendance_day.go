// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/makeup"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/pkg/logger"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTENDANCE DAY COMMAND
// Records one day of attendance for one session type. The whole submission is
// validated before anything is written; saved clinical records are handed to
// the makeup deriver inside the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceDayCommand contains one day's submission.
type RecordAttendanceDayCommand struct {
	// Date is the calendar date (YYYY-MM-DD).
	Date string

	// Type is "clinical" or "classroom", any casing.
	Type string

	// Entries are the per-student outcomes.
	Entries []attendance.Entry

	// CorrelationID for tracing.
	CorrelationID string
}

// RecordAttendanceDayResult contains the saved records and their obligations.
type RecordAttendanceDayResult struct {
	// Saved are the attendance records as persisted, in submission order.
	Saved []*attendance.Record

	// DerivedObligations are the current obligations of the saved records.
	// Always empty for classroom attendance.
	DerivedObligations []*makeup.Record

	// Created, Updated and Removed count the obligation writes.
	Created int
	Updated int
	Removed int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceDayHandler handles the RecordAttendanceDayCommand.
type RecordAttendanceDayHandler struct {
	store          uow.Transactor
	eventPublisher shared.EventPublisher
	defaults       attendance.ShiftDefaults
	derivation     DerivationConfig
	log            *logger.Logger
}

// NewRecordAttendanceDayHandler creates a new RecordAttendanceDayHandler.
func NewRecordAttendanceDayHandler(
	store uow.Transactor,
	eventPublisher shared.EventPublisher,
	defaults attendance.ShiftDefaults,
	derivation DerivationConfig,
	log *logger.Logger,
) *RecordAttendanceDayHandler {
	if defaults.Clinical <= 0 || defaults.Classroom <= 0 {
		defaults = attendance.DefaultShiftDefaults()
	}
	if log == nil {
		log = logger.Default()
	}
	return &RecordAttendanceDayHandler{
		store:          store,
		eventPublisher: eventPublisher,
		defaults:       defaults,
		derivation:     derivation.withDefaults(),
		log:            log.With(logger.Component("record_attendance_day")),
	}
}

// Handle executes the command.
func (h *RecordAttendanceDayHandler) Handle(ctx context.Context, cmd RecordAttendanceDayCommand) (*RecordAttendanceDayResult, error) {
	attType, typeOK := attendance.ParseType(cmd.Type)
	if !typeOK || !timeutil.IsValidDate(cmd.Date) || len(cmd.Entries) == 0 {
		// Header problems make prior records unreadable; report everything
		// BuildDay finds without them.
		_, err := attendance.BuildDay(cmd.Date, attendance.Type(cmd.Type), cmd.Entries, nil, h.defaults, h.derivation.Now())
		return nil, err
	}

	now := h.derivation.Now()
	result := &RecordAttendanceDayResult{}

	err := h.store.WithinTx(ctx, func(ctx context.Context, tx uow.Store) error {
		ids := make([]string, 0, len(cmd.Entries))
		for _, e := range cmd.Entries {
			if id := strings.TrimSpace(e.StudentID); id != "" {
				ids = append(ids, attendance.RecordID(id, cmd.Date, attType))
			}
		}
		prior, err := tx.Attendance().GetByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load prior attendance: %w", err)
		}

		day, err := attendance.BuildDay(cmd.Date, attType, cmd.Entries, prior, h.defaults, now)
		if err != nil {
			return err
		}

		if err := tx.Attendance().UpsertBatch(ctx, day.Records); err != nil {
			return fmt.Errorf("save attendance: %w", err)
		}
		result.Saved = day.Records

		if !day.Derives() {
			return nil
		}
		d, err := deriveAndApply(ctx, tx, day.Records, h.derivation, now)
		if err != nil {
			return err
		}
		result.DerivedObligations = d.Obligations
		result.Created, result.Updated, result.Removed = d.Created, d.Updated, d.Removed
		result.Events = d.Events
		return nil
	})
	if err != nil {
		if !shared.IsValidation(err) {
			h.log.Error("attendance day rejected",
				logger.AttendanceDate(cmd.Date),
				logger.AttendanceType(string(attType)),
				logger.Err(err),
			)
		}
		return nil, err
	}

	day := attendance.Day{Date: cmd.Date, Type: attType, Records: result.Saved}
	dayEvent := shared.NewAttendanceDayRecordedEvent(cmd.Date, string(attType), day.StudentIDs(), len(result.DerivedObligations))
	dayEvent.BaseEvent = dayEvent.WithCorrelationID(cmd.CorrelationID)
	result.Events = append([]shared.Event{dayEvent}, result.Events...)

	if err := publishAll(h.eventPublisher, result.Events); err != nil {
		h.log.Warn("failed to publish attendance events", logger.Err(err))
	}

	h.log.Info("attendance day recorded",
		logger.AttendanceDate(cmd.Date),
		logger.AttendanceType(string(attType)),
		logger.Count("saved", len(result.Saved)),
		logger.Count("created", result.Created),
		logger.Count("updated", result.Updated),
		logger.Count("removed", result.Removed),
	)

	return result, nil
}
