// Package messaging carries domain events between the application layer and
// its subscribers. LocalBus delivers inside one process; RedisEventBus relays
// events to every running instance over Redis Pub/Sub.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nursetrack/clinical-hours/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned by Publish and Subscribe after Close.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// InMemoryEventBusConfig configures NewInMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode hands deliveries to background workers. Publish then returns
	// before handlers run.
	AsyncMode bool

	// Workers is the number of delivery goroutines in async mode. Default 4.
	Workers int

	// QueueSize bounds pending deliveries. A full queue makes Publish wait.
	QueueSize int

	Logger        *slog.Logger
	EnableMetrics bool
}

type delivery struct {
	event    shared.Event
	handlers []shared.EventHandler
}

// InMemoryEventBus routes events to handlers registered in this process.
// Handler errors and panics are logged and counted but never reach the
// publisher, whose state change is already committed.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	queue   chan delivery
	workers sync.WaitGroup

	logger  *slog.Logger
	metrics *EventBusMetrics
}

// NewInMemoryEventBus creates the bus and, in async mode, starts its workers.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &InMemoryEventBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		logger: cfg.Logger.With("component", "event_bus"),
	}
	if cfg.EnableMetrics {
		b.metrics = NewEventBusMetrics()
	}

	if cfg.AsyncMode {
		if cfg.Workers <= 0 {
			cfg.Workers = 4
		}
		if cfg.QueueSize <= 0 {
			cfg.QueueSize = 256
		}
		b.queue = make(chan delivery, cfg.QueueSize)
		for i := 0; i < cfg.Workers; i++ {
			b.workers.Add(1)
			go b.work()
		}
	}
	return b
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.register(handler, func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	})
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(handler, func() {
		b.wildcard = append(b.wildcard, handler)
	})
}

func (b *InMemoryEventBus) register(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return errors.New("nil event handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish delivers event to the handlers of its type and then to the
// wildcard handlers, in registration order.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("nil event")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	d := delivery{event: event, handlers: make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))}
	d.handlers = append(d.handlers, typed...)
	d.handlers = append(d.handlers, b.wildcard...)

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}
	if len(d.handlers) == 0 {
		b.mu.RUnlock()
		return nil
	}

	if b.queue != nil {
		// Close needs the write lock, so the queue cannot close under us.
		b.queue <- d
		b.mu.RUnlock()
		return nil
	}
	b.mu.RUnlock()

	b.deliver(d)
	return nil
}

func (b *InMemoryEventBus) work() {
	defer b.workers.Done()
	for d := range b.queue {
		b.deliver(d)
	}
}

func (b *InMemoryEventBus) deliver(d delivery) {
	for _, h := range d.handlers {
		if err := b.run(d.event, h); err != nil {
			b.logger.Error("event handler failed",
				"event_type", d.event.EventType(),
				"aggregate_id", d.event.AggregateID(),
				"error", err,
			)
		}
	}
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "event_type", event.EventType(), "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if b.metrics != nil {
			b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)
		}
	}()
	return h(event)
}

// Close stops accepting events and waits for queued deliveries to finish.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.mu.Unlock()

	b.workers.Wait()
	b.logger.Debug("event bus closed")
	return nil
}

// Metrics returns the bus counters, or nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
