package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursetrack/clinical-hours/internal/application/command"
)

type fakeReconciler struct {
	calls []command.ReconcileMakeupHoursCommand
	res   *command.ReconcileMakeupHoursResult
	err   error
}

func (f *fakeReconciler) Handle(_ context.Context, cmd command.ReconcileMakeupHoursCommand) (*command.ReconcileMakeupHoursResult, error) {
	f.calls = append(f.calls, cmd)
	return f.res, f.err
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Acquire(context.Context, string, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func newJob(r Reconciler, l Locker, lookback int) *ReconcileMakeupJob {
	j := NewReconcileMakeupJob(r, l, slog.New(slog.NewTextHandler(io.Discard, nil)), ReconcileMakeupConfig{LookbackDays: lookback})
	j.today = func() string { return "2024-03-15" }
	return j
}

func TestReconcileMakeupJobWindow(t *testing.T) {
	r := &fakeReconciler{res: &command.ReconcileMakeupHoursResult{Students: 2, Created: 1}}
	j := newJob(r, nil, 14)

	require.NoError(t, j.Run(context.Background()))
	require.Len(t, r.calls, 1)
	assert.Equal(t, command.ReconcileMakeupHoursCommand{From: "2024-03-01", To: "2024-03-15"}, r.calls[0])
	assert.Equal(t, 1, j.LastResult().Created)

	full := newJob(r, nil, 0)
	require.NoError(t, full.Run(context.Background()))
	assert.Equal(t, command.ReconcileMakeupHoursCommand{}, r.calls[1])
}

func TestReconcileMakeupJobLock(t *testing.T) {
	r := &fakeReconciler{res: &command.ReconcileMakeupHoursResult{}}
	lock := &fakeLocker{}
	j := newJob(r, lock, 7)

	require.NoError(t, j.Run(context.Background()))
	assert.Equal(t, 1, lock.released)
	assert.False(t, lock.held)

	lock.held = true
	require.NoError(t, j.Run(context.Background()))
	assert.Len(t, r.calls, 1)
}

func TestReconcileMakeupJobPartialFailure(t *testing.T) {
	r := &fakeReconciler{
		res: &command.ReconcileMakeupHoursResult{Students: 3, Failed: []string{"s2"}},
		err: errors.New("student s2: conflict"),
	}
	j := newJob(r, nil, 7)

	err := j.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 students failed")
	assert.Equal(t, []string{"s2"}, j.LastResult().Failed)

	r.res, r.err = nil, errors.New("list attendance: down")
	assert.EqualError(t, j.Run(context.Background()), "list attendance: down")
}
