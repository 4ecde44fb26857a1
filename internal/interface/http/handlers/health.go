package handlers

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

// Pinger is satisfied by the record stores and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Message   string                 `json:"message"`
	Checks    map[string]CheckResult `json:"checks"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthChecker probes the registered dependencies in parallel, each under
// its own timeout.
type HealthChecker struct {
	version string
	started time.Time
	timeout time.Duration

	mu      sync.RWMutex
	pingers map[string]Pinger
}

func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version: version,
		started: time.Now(),
		timeout: 3 * time.Second,
		pingers: make(map[string]Pinger),
	}
}

// AddPinger registers p under name, replacing any earlier one.
func (h *HealthChecker) AddPinger(name string, p Pinger) {
	h.mu.Lock()
	h.pingers[name] = p
	h.mu.Unlock()
}

// Check runs every probe. A failing probe never cancels the others.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.pingers))
	for name := range h.pingers {
		names = append(names, name)
	}
	h.mu.RUnlock()
	slices.Sort(names)

	results := make([]CheckResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		i := i
		h.mu.RLock()
		p := h.pingers[name]
		h.mu.RUnlock()
		g.Go(func() error {
			results[i] = h.probe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Healthy:   true,
		Message:   "ok",
		Checks:    make(map[string]CheckResult, len(names)),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	}
	var down []string
	for i, name := range names {
		status.Checks[name] = results[i]
		if !results[i].Healthy {
			down = append(down, name)
		}
	}
	if len(down) > 0 {
		status.Healthy = false
		status.Message = "unavailable: " + strings.Join(down, ", ")
	}
	return status
}

func (h *HealthChecker) probe(ctx context.Context, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	res := CheckResult{Healthy: err == nil, Latency: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Handler serves Check, with 503 while any dependency is down.
func (h *HealthChecker) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := h.Check(c.UserContext())
		if !status.Healthy {
			c.Status(fiber.StatusServiceUnavailable)
		}
		return c.JSON(status)
	}
}
