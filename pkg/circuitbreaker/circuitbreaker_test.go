package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*CircuitBreaker, *clock) {
	clk := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := New("test", opts...)
	cb.now = clk.now
	return cb, clk
}

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb, _ := newTestBreaker(
		WithFailureThreshold(3),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed>open"}, transitions)
	assert.Equal(t, 1, cb.Counts().Rejected)
}

func TestBreakerProbesAfterCoolOff(t *testing.T) {
	cb, clk := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2), WithCoolOff(10*time.Second))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())

	clk.advance(10 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	require.Error(t, cb.Execute(ctx, fail))
	clk.advance(10 * time.Second)
	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State(), "a failed probe reopens")
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)
}

func TestBreakerLimitsConcurrentProbes(t *testing.T) {
	cb, clk := newTestBreaker(WithFailureThreshold(1), WithCoolOff(time.Second))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	clk.advance(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		return cb.Execute(ctx, ok)
	})
	assert.ErrorIs(t, err, ErrProbeLimit)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(1))

	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	cb.config.IsFailure = func(err error) bool { return !errors.Is(err, errDown) }
	require.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(WithFailureThreshold(1))
	require.Error(t, cb.Execute(context.Background(), fail))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}
