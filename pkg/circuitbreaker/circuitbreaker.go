// Package circuitbreaker stops calls to a failing dependency for a cool-off
// period so callers fall back at once instead of waiting on timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-off elapses.
	StateOpen
	// StateHalfOpen lets a few probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrOpen is returned without calling fn while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrProbeLimit is returned when every half-open probe slot is taken.
	ErrProbeLimit = errors.New("circuit breaker probe limit reached")
)

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int

	// CoolOff is how long the breaker stays open before probing.
	CoolOff time.Duration

	// MaxProbes bounds concurrent calls while half-open.
	MaxProbes int

	// OnStateChange observes transitions. It runs under the breaker lock
	// and must not call back into the breaker.
	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Nil counts every non-nil error
	// except context cancellation.
	IsFailure func(error) bool
}

// Option configures a breaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the success threshold.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithCoolOff sets how long the breaker stays open.
func WithCoolOff(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CoolOff = d
		}
	}
}

// WithMaxProbes sets the half-open concurrency.
func WithMaxProbes(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxProbes = n
		}
	}
}

// WithOnStateChange sets the transition callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// WithIsFailure sets the failure classifier.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// Counts are cumulative call outcomes.
type Counts struct {
	Requests  int
	Successes int
	Failures  int
	Rejected  int
}

// CircuitBreaker guards calls to one dependency. Safe for concurrent use.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	counts      Counts
	consecutive int
	openedAt    time.Time
	probes      int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolOff:          30 * time.Second,
		MaxProbes:        1,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn unless the breaker rejects the call, and records the
// outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.CoolOff {
			cb.counts.Rejected++
			return ErrOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.config.MaxProbes {
			cb.counts.Rejected++
			return ErrProbeLimit
		}
		cb.probes++
	}
	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}

	if !cb.isFailure(err) {
		cb.counts.Successes++
		switch cb.state {
		case StateHalfOpen:
			cb.consecutive++
			if cb.consecutive >= cb.config.SuccessThreshold {
				cb.transition(StateClosed)
			}
		case StateClosed:
			cb.consecutive = 0
		}
		return
	}

	cb.counts.Failures++
	switch cb.state {
	case StateHalfOpen:
		cb.trip()
	case StateClosed:
		cb.consecutive++
		if cb.consecutive >= cb.config.FailureThreshold {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if cb.config.IsFailure != nil {
		return cb.config.IsFailure(err)
	}
	return !errors.Is(err, context.Canceled)
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.consecutive = 0
	cb.probes = 0
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current position. An open breaker whose cool-off has
// elapsed still reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns the cumulative outcomes.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset closes the breaker and clears its counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.consecutive = 0
	cb.probes = 0
}

// CacheBreaker suits the summary cache: it trips fast and probes again
// soon, since every rejected call just falls back to the record store.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("redis-cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCoolOff(15*time.Second),
		WithOnStateChange(onStateChange),
	)
}
