// Package scheduler runs background jobs such as the periodic makeup-hours
// reconciliation. Each registered job gets its own timer goroutine, so a job
// never overlaps with its own previous run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrNilJob                  = errors.New("nil job")
	ErrNilSchedule             = errors.New("nil schedule")
	ErrJobAlreadyExists        = errors.New("job already registered")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobRunning              = errors.New("job is running")
	ErrJobPanicked             = errors.New("job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
)

// Job is a unit of background work. Run receives a context that is
// cancelled when the scheduler stops.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Schedule yields the next activation strictly after t.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one finished run.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Manual      bool
	Error       error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Error == nil }

// JobInfo is the externally visible state of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// SchedulerConfig configures NewScheduler.
type SchedulerConfig struct {
	Logger *slog.Logger
	// Timezone in which cron fields are evaluated. Default UTC.
	Timezone *time.Location
}

type entry struct {
	job      Job
	schedule Schedule
	run      sync.Mutex // held for the duration of a run

	// guarded by Scheduler.mu
	info JobInfo
}

// Scheduler owns the registered jobs and their timers.
type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	stop    context.CancelFunc
	wg      sync.WaitGroup

	totals Stats
}

// NewScheduler creates an idle scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Scheduler{
		logger:  cfg.Logger.With("component", "scheduler"),
		loc:     cfg.Timezone,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Register adds job. Jobs registered after Start are not picked up until the
// next Start.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := job.Name()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule}
	e.info = JobInfo{
		Name:        name,
		Description: job.Description(),
		Enabled:     true,
		Schedule:    schedule.String(),
		NextRun:     schedule.Next(s.now().In(s.loc)),
	}
	s.entries[name] = e
	s.logger.Info("job registered", "job", name, "schedule", e.info.Schedule, "next_run", e.info.NextRun)
	return nil
}

// SetEnabled pauses or resumes the timed runs of a job. RunNow still works
// on a disabled job.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.info.Enabled = enabled
	return nil
}

// Start launches one timer goroutine per job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return ErrSchedulerAlreadyRunning
	}
	ctx, s.stop = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop cancels running jobs and waits for their goroutines to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return ErrSchedulerNotRunning
	}
	stop()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		next := e.info.NextRun
		s.mu.Unlock()

		timer := time.NewTimer(max(next.Sub(s.now()), 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.fire(ctx, e, s.now().In(s.loc))
	}
}

// fire advances the entry's next activation and runs it when enabled.
func (s *Scheduler) fire(ctx context.Context, e *entry, now time.Time) {
	s.mu.Lock()
	e.info.NextRun = e.schedule.Next(now)
	enabled := e.info.Enabled
	s.mu.Unlock()

	if !enabled {
		return
	}
	if !e.run.TryLock() {
		s.logger.Warn("job still running, skipping activation", "job", e.info.Name)
		return
	}
	defer e.run.Unlock()
	s.execute(ctx, e, false)
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !e.run.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer e.run.Unlock()

	res := s.execute(ctx, e, true)
	return &res, res.Error
}

func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) JobResult {
	res := JobResult{JobName: e.job.Name(), StartedAt: s.now(), Manual: manual}
	res.Error = invoke(ctx, e.job)
	res.CompletedAt = s.now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)

	s.mu.Lock()
	e.info.LastRun = res.StartedAt
	e.info.RunCount++
	s.totals.Runs++
	s.totals.Busy += res.Duration
	if res.Error != nil {
		e.info.FailCount++
		s.totals.Failures++
	}
	last := res
	e.info.LastResult = &last
	s.mu.Unlock()

	attrs := []any{"job", res.JobName, "manual", manual, "duration", res.Duration}
	if res.Error != nil {
		s.logger.Error("job failed", append(attrs, "error", res.Error)...)
	} else {
		s.logger.Info("job finished", attrs...)
	}
	return res
}

func invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}

// ListJobs returns a copy of every job's state, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats aggregates runs across all jobs.
type Stats struct {
	Runs     int64
	Failures int64
	Busy     time.Duration
}

// AverageDuration is Busy divided by Runs.
func (st Stats) AverageDuration() time.Duration {
	if st.Runs == 0 {
		return 0
	}
	return st.Busy / time.Duration(st.Runs)
}

// Stats returns the aggregate counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}
