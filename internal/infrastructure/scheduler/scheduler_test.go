package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func quietScheduler() *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRegister(t *testing.T) {
	s := quietScheduler()
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)
}

func TestRunNowRecordsFailures(t *testing.T) {
	s := quietScheduler()
	failing := &countingJob{name: "fail", err: errors.New("nope")}
	panicking := &countingJob{name: "panic", panic: true}
	require.NoError(t, s.Register(failing, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(panicking, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "fail")
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Manual)
	assert.False(t, res.Success())

	_, err = s.RunNow(context.Background(), "panic")
	assert.ErrorIs(t, err, ErrJobPanicked)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Runs)
	assert.Equal(t, int64(2), stats.Failures)

	for _, info := range s.ListJobs() {
		assert.Equal(t, int64(1), info.FailCount, info.Name)
	}
}

func TestDueJobsRunAndSkipDisabled(t *testing.T) {
	s := quietScheduler()
	due := &countingJob{name: "due"}
	off := &countingJob{name: "off"}
	require.NoError(t, s.Register(due, NewIntervalSchedule(20*time.Millisecond)))
	require.NoError(t, s.Register(off, NewIntervalSchedule(20*time.Millisecond)))
	require.NoError(t, s.SetEnabled("off", false))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return due.runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.False(t, s.IsRunning())

	assert.Equal(t, int32(0), off.runs.Load())
	for _, info := range s.ListJobs() {
		if info.Name == "off" {
			assert.False(t, info.Enabled)
			assert.Zero(t, info.RunCount)
		}
	}
}

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (j *blockingJob) Name() string        { return "slow" }
func (j *blockingJob) Description() string { return "blocks until released" }
func (j *blockingJob) Run(ctx context.Context) error {
	close(j.started)
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return nil
}

func TestRunNowRejectsOverlap(t *testing.T) {
	s := quietScheduler()
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background(), "slow")
		done <- err
	}()
	<-job.started

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	// A timed activation during the run is skipped, not queued.
	s.fire(context.Background(), s.entries["slow"], time.Now())

	close(job.release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), s.ListJobs()[0].RunCount)
}

func TestParseSchedule(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 7, 30, 0, time.UTC)

	every, err := ParseSchedule("@every 30m")
	require.NoError(t, err)
	assert.Equal(t, base.Add(30*time.Minute), every.Next(base))

	daily, err := ParseSchedule("@daily")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), daily.Next(base))

	cron, err := ParseSchedule("*/15 9-17 * * 1-5")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC), cron.Next(base))
	// Friday 17:45 rolls over to Monday 09:00.
	assert.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		cron.Next(time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC)))

	list, err := ParseSchedule("0 2,14 * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC), list.Next(base))

	for _, bad := range []string{"", "@every 10ms", "@every soon", "* * *", "61 * * * *", "*/0 * * * *", "5-1 * * * *"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}
