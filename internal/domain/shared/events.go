package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each is a typed dispatch object published after the
// state change it describes has been committed.
const (
	// Attendance events
	EventAttendanceDayRecorded EventType = "attendance.day_recorded"

	// Makeup ledger events
	EventMakeupObligationDerived EventType = "makeup.obligation_derived"
	EventMakeupObligationRemoved EventType = "makeup.obligation_removed"
	EventMakeupObligationDeleted EventType = "makeup.obligation_deleted"
	EventMakeupHoursLogged       EventType = "makeup.hours_logged"

	// Clinical log events
	EventClinicalLogAdded    EventType = "clinical.log_added"
	EventClinicalLogReviewed EventType = "clinical.log_reviewed"

	// System events
	EventReconciliationCompleted EventType = "system.reconciliation_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Correlation returns the correlation ID, empty if none was set.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceDayRecordedEvent is emitted once per saved attendance batch.
type AttendanceDayRecordedEvent struct {
	BaseEvent
	Date           string   `json:"date"`
	AttendanceType string   `json:"attendance_type"`
	StudentIDs     []string `json:"student_ids"`
	Derived        int      `json:"derived"`
}

// Payload implements Event interface.
func (e AttendanceDayRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":            e.Date,
		"attendance_type": e.AttendanceType,
		"student_ids":     e.StudentIDs,
		"derived":         e.Derived,
	}
}

// NewAttendanceDayRecordedEvent creates a new AttendanceDayRecordedEvent.
func NewAttendanceDayRecordedEvent(date, attendanceType string, studentIDs []string, derived int) AttendanceDayRecordedEvent {
	return AttendanceDayRecordedEvent{
		BaseEvent:      NewBaseEvent(EventAttendanceDayRecorded, date+"/"+attendanceType),
		Date:           date,
		AttendanceType: attendanceType,
		StudentIDs:     studentIDs,
		Derived:        derived,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Makeup Events
// ═══════════════════════════════════════════════════════════════════════════

// MakeupObligationDerivedEvent is emitted when an obligation is created or its
// owed hours were refreshed from an attendance record.
type MakeupObligationDerivedEvent struct {
	BaseEvent
	StudentID         string  `json:"student_id"`
	OriginalAbsenceID string  `json:"original_absence_id"`
	HoursOwed         float64 `json:"hours_owed"`
	Created           bool    `json:"created"`
}

// Payload implements Event interface.
func (e MakeupObligationDerivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":          e.StudentID,
		"original_absence_id": e.OriginalAbsenceID,
		"hours_owed":          e.HoursOwed,
		"created":             e.Created,
	}
}

// NewMakeupObligationDerivedEvent creates a new MakeupObligationDerivedEvent.
func NewMakeupObligationDerivedEvent(recordID, studentID, absenceID string, hoursOwed float64, created bool) MakeupObligationDerivedEvent {
	return MakeupObligationDerivedEvent{
		BaseEvent:         NewBaseEvent(EventMakeupObligationDerived, recordID),
		StudentID:         studentID,
		OriginalAbsenceID: absenceID,
		HoursOwed:         hoursOwed,
		Created:           created,
	}
}

// MakeupObligationRemovedEvent is emitted when a corrected attendance record
// no longer requires remediation and its obligation was dropped.
type MakeupObligationRemovedEvent struct {
	BaseEvent
	StudentID         string `json:"student_id"`
	OriginalAbsenceID string `json:"original_absence_id"`
}

// Payload implements Event interface.
func (e MakeupObligationRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":          e.StudentID,
		"original_absence_id": e.OriginalAbsenceID,
	}
}

// NewMakeupObligationRemovedEvent creates a new MakeupObligationRemovedEvent.
func NewMakeupObligationRemovedEvent(recordID, studentID, absenceID string) MakeupObligationRemovedEvent {
	return MakeupObligationRemovedEvent{
		BaseEvent:         NewBaseEvent(EventMakeupObligationRemoved, recordID),
		StudentID:         studentID,
		OriginalAbsenceID: absenceID,
	}
}

// MakeupObligationDeletedEvent is emitted on an instructor override delete.
type MakeupObligationDeletedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
}

// Payload implements Event interface.
func (e MakeupObligationDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
	}
}

// NewMakeupObligationDeletedEvent creates a new MakeupObligationDeletedEvent.
func NewMakeupObligationDeletedEvent(recordID, studentID string) MakeupObligationDeletedEvent {
	return MakeupObligationDeletedEvent{
		BaseEvent: NewBaseEvent(EventMakeupObligationDeleted, recordID),
		StudentID: studentID,
	}
}

// MakeupHoursLoggedEvent is emitted when completed hours were logged.
type MakeupHoursLoggedEvent struct {
	BaseEvent
	StudentID      string  `json:"student_id"`
	HoursAdded     float64 `json:"hours_added"`
	HoursCompleted float64 `json:"hours_completed"`
	HoursOwed      float64 `json:"hours_owed"`
	Completed      bool    `json:"completed"`
}

// Payload implements Event interface.
func (e MakeupHoursLoggedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"hours_added":     e.HoursAdded,
		"hours_completed": e.HoursCompleted,
		"hours_owed":      e.HoursOwed,
		"completed":       e.Completed,
	}
}

// NewMakeupHoursLoggedEvent creates a new MakeupHoursLoggedEvent.
func NewMakeupHoursLoggedEvent(recordID, studentID string, added, completed, owed float64) MakeupHoursLoggedEvent {
	return MakeupHoursLoggedEvent{
		BaseEvent:      NewBaseEvent(EventMakeupHoursLogged, recordID),
		StudentID:      studentID,
		HoursAdded:     added,
		HoursCompleted: completed,
		HoursOwed:      owed,
		Completed:      completed >= owed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Clinical Log Events
// ═══════════════════════════════════════════════════════════════════════════

// ClinicalLogAddedEvent is emitted when a student submits a clinical log.
type ClinicalLogAddedEvent struct {
	BaseEvent
	StudentID    string  `json:"student_id"`
	SiteName     string  `json:"site_name"`
	Hours        float64 `json:"hours"`
	IsSimulation bool    `json:"is_simulation"`
}

// Payload implements Event interface.
func (e ClinicalLogAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"site_name":     e.SiteName,
		"hours":         e.Hours,
		"is_simulation": e.IsSimulation,
	}
}

// NewClinicalLogAddedEvent creates a new ClinicalLogAddedEvent.
func NewClinicalLogAddedEvent(logID, studentID, siteName string, hours float64, isSimulation bool) ClinicalLogAddedEvent {
	return ClinicalLogAddedEvent{
		BaseEvent:    NewBaseEvent(EventClinicalLogAdded, logID),
		StudentID:    studentID,
		SiteName:     siteName,
		Hours:        hours,
		IsSimulation: isSimulation,
	}
}

// ClinicalLogReviewedEvent is emitted when an instructor approves or rejects a log.
type ClinicalLogReviewedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// Payload implements Event interface.
func (e ClinicalLogReviewedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"status":     e.Status,
	}
}

// NewClinicalLogReviewedEvent creates a new ClinicalLogReviewedEvent.
func NewClinicalLogReviewedEvent(logID, studentID, status string) ClinicalLogReviewedEvent {
	return ClinicalLogReviewedEvent{
		BaseEvent: NewBaseEvent(EventClinicalLogReviewed, logID),
		StudentID: studentID,
		Status:    status,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// ReconciliationCompletedEvent is emitted after a reconciliation pass.
type ReconciliationCompletedEvent struct {
	BaseEvent
	From     string `json:"from"`
	To       string `json:"to"`
	Students int    `json:"students"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Removed  int    `json:"removed"`
}

// Payload implements Event interface.
func (e ReconciliationCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from":     e.From,
		"to":       e.To,
		"students": e.Students,
		"created":  e.Created,
		"updated":  e.Updated,
		"removed":  e.Removed,
	}
}

// NewReconciliationCompletedEvent creates a new ReconciliationCompletedEvent.
func NewReconciliationCompletedEvent(from, to string, students, created, updated, removed int) ReconciliationCompletedEvent {
	return ReconciliationCompletedEvent{
		BaseEvent: NewBaseEvent(EventReconciliationCompleted, from+".."+to),
		From:      from,
		To:        to,
		Students:  students,
		Created:   created,
		Updated:   updated,
		Removed:   removed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events. Useful for one-shot CLI runs.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
