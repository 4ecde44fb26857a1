package redis

import (
	"context"
	"errors"
	"time"

	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/pkg/circuitbreaker"
)

// HoursSummaryCache implements query.HoursSummaryCache.
type HoursSummaryCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

var _ query.HoursSummaryCache = (*HoursSummaryCache)(nil)

// NewHoursSummaryCache creates the cache. ttl <= 0 uses TTLHoursSummary.
func NewHoursSummaryCache(cache *Cache, ttl time.Duration) *HoursSummaryCache {
	if ttl <= 0 {
		ttl = TTLHoursSummary
	}
	return &HoursSummaryCache{cache: cache, ttl: ttl}
}

// WithBreaker routes every call through cb. While it is open, reads miss
// and writes fail fast so queries go straight to the record store.
func (h *HoursSummaryCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *HoursSummaryCache {
	h.breaker = cb
	return h
}

func (h *HoursSummaryCache) do(ctx context.Context, fn func(context.Context) error) error {
	if h.breaker == nil {
		return fn(ctx)
	}
	return h.breaker.Execute(ctx, fn)
}

// GetHoursSummary returns the cached summary, or ok=false on a miss.
func (h *HoursSummaryCache) GetHoursSummary(ctx context.Context, studentID string) (*query.StudentHoursDTO, bool, error) {
	var (
		dto query.StudentHoursDTO
		hit bool
	)
	err := h.do(ctx, func(ctx context.Context) error {
		err := h.cache.Get(ctx, HoursKey(studentID), &dto)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, circuitbreaker.ErrProbeLimit):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case !hit:
		return nil, false, nil
	}
	return &dto, true, nil
}

// SetHoursSummary stores a summary under its student.
func (h *HoursSummaryCache) SetHoursSummary(ctx context.Context, summary *query.StudentHoursDTO) error {
	if summary == nil {
		return ErrCacheNilValue
	}
	return h.do(ctx, func(ctx context.Context) error {
		return h.cache.Set(ctx, HoursKey(summary.StudentID), summary, h.ttl)
	})
}

// InvalidateStudent drops the summary of a student.
func (h *HoursSummaryCache) InvalidateStudent(ctx context.Context, studentID string) error {
	return h.do(ctx, func(ctx context.Context) error {
		return h.cache.Delete(ctx, HoursKey(studentID))
	})
}

// InvalidateAll drops every cached summary.
func (h *HoursSummaryCache) InvalidateAll(ctx context.Context) error {
	return h.do(ctx, func(ctx context.Context) error {
		return h.cache.DeleteByPattern(ctx, PrefixHours+"*")
	})
}
