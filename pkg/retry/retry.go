// Package retry retries infrastructure calls with capped exponential backoff.
// It is used for connects at startup; hours mutations are never retried.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// PermanentError stops the retry loop at once.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Config holds backoff settings.
type Config struct {
	// MaxAttempts counts the first call too.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by up to +/- this fraction.
	Jitter float64

	// RetryIf decides which errors are retried. Nil retries everything
	// except permanent errors and context cancellation.
	RetryIf func(error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Option configures a Retrier.
type Option func(*Config)

// WithMaxAttempts sets the attempt limit.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithBackoff sets the first delay, the cap and the growth factor.
func WithBackoff(initial, max time.Duration, multiplier float64) Option {
	return func(c *Config) {
		if initial > 0 {
			c.InitialDelay = initial
		}
		if max > 0 {
			c.MaxDelay = max
		}
		if multiplier >= 1 {
			c.Multiplier = multiplier
		}
	}
}

// WithJitter sets the jitter fraction, between 0 and 1.
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1 {
			c.Jitter = j
		}
	}
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry sets the retry callback.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier runs operations under one Config.
type Retrier struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Retrier. Without options it makes 3 attempts starting at
// 100ms.
func New(opts ...Option) *Retrier {
	config := Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config, sleep: sleepCtx}
}

// Do calls op until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The last operation error is returned
// unwrapped from PermanentError.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if !r.retryable(err) || attempt >= r.config.MaxAttempts {
			return err
		}

		delay := r.Delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
}

func (r *Retrier) retryable(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Delay returns the wait after the given failed attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter > 0 {
		d += d * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ConnectRetrier waits out a database or cache that is still starting:
// 5 attempts over roughly 7.5 seconds.
func ConnectRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(5),
		WithBackoff(500*time.Millisecond, 10*time.Second, 2),
		WithJitter(0.2),
	}
	return New(append(base, opts...)...)
}
