package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func instant(r *Retrier) (*Retrier, *[]time.Duration) {
	var waits []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return r, &waits
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r, waits := instant(New(WithMaxAttempts(4), WithBackoff(10*time.Millisecond, time.Second, 2), WithJitter(0)))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errRefused
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	var retried []int
	r, _ := instant(New(WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error { calls++; return errRefused })
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoPermanentAndPredicate(t *testing.T) {
	r, _ := instant(New(WithMaxAttempts(5)))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error { calls++; return Permanent(errRefused) })
	assert.Equal(t, errRefused, err)
	assert.Equal(t, 1, calls)

	r, _ = instant(New(WithMaxAttempts(5), WithRetryIf(func(err error) bool { return false })))
	calls = 0
	_ = r.Do(context.Background(), func(context.Context) error { calls++; return errRefused })
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, _ := instant(New(WithMaxAttempts(10)))

	calls := 0
	err := r.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errRefused
	})
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 1, calls)
}

func TestDelayIsCapped(t *testing.T) {
	r := New(WithBackoff(time.Second, 5*time.Second, 3), WithJitter(0))
	assert.Equal(t, time.Second, r.Delay(1))
	assert.Equal(t, 3*time.Second, r.Delay(2))
	assert.Equal(t, 5*time.Second, r.Delay(3))
}
