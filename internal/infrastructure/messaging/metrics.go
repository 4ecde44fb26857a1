package messaging

import (
	"sync"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

// EventBusMetrics counts publishes and handler runs per event type.
type EventBusMetrics struct {
	mu        sync.Mutex
	since     time.Time
	published map[shared.EventType]int64
	runs      int64
	failures  int64
	busy      time.Duration
}

// NewEventBusMetrics starts a zeroed counter set.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{since: time.Now(), published: make(map[shared.EventType]int64)}
}

func (m *EventBusMetrics) RecordPublish(t shared.EventType) {
	m.mu.Lock()
	m.published[t]++
	m.mu.Unlock()
}

func (m *EventBusMetrics) RecordHandlerExecution(_ shared.EventType, took time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.busy += took
	if !ok {
		m.failures++
	}
}

// EventBusMetricsSnapshot is a copy of the counters at one instant.
type EventBusMetricsSnapshot struct {
	Since                  time.Time
	PublishedByType        map[shared.EventType]int64
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	AverageHandlerDuration time.Duration
}

// Snapshot copies the counters.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := EventBusMetricsSnapshot{
		Since:             m.since,
		PublishedByType:   make(map[shared.EventType]int64, len(m.published)),
		TotalHandlerExecs: m.runs,
		HandlerFailures:   m.failures,
	}
	for t, n := range m.published {
		snap.PublishedByType[t] = n
		snap.TotalPublished += n
	}
	if m.runs > 0 {
		snap.AverageHandlerDuration = m.busy / time.Duration(m.runs)
	}
	return snap
}
