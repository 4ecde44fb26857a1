// Package jobs contains the scheduled jobs of the compliance service.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nursetrack/clinical-hours/internal/application/command"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE MAKEUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileMakeupHoursCommand) (*command.ReconcileMakeupHoursResult, error)
}

// Locker hands out a cluster-wide lock. acquired is false when another
// instance holds it.
type Locker interface {
	Acquire(ctx context.Context, name, token string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// ReconcileMakeupConfig contains configuration for the reconcile job.
type ReconcileMakeupConfig struct {
	// LookbackDays bounds the attendance window to the last N days.
	// Zero reconciles the whole history.
	LookbackDays int

	// Timeout is the maximum duration of one pass.
	Timeout time.Duration

	// LockTTL is how long the cluster lock is held at most.
	LockTTL time.Duration
}

// DefaultReconcileMakeupConfig returns sensible defaults.
func DefaultReconcileMakeupConfig() ReconcileMakeupConfig {
	return ReconcileMakeupConfig{
		LookbackDays: 60,
		Timeout:      10 * time.Minute,
		LockTTL:      15 * time.Minute,
	}
}

// ReconcileMakeupJob periodically re-derives makeup obligations from
// attendance so the ledger repairs itself after partial failures.
type ReconcileMakeupJob struct {
	reconciler Reconciler
	locker     Locker
	today      func() string
	logger     *slog.Logger
	config     ReconcileMakeupConfig

	lastResult atomic.Pointer[command.ReconcileMakeupHoursResult]
}

// NewReconcileMakeupJob creates the job. locker may be nil on a single
// instance.
func NewReconcileMakeupJob(reconciler Reconciler, locker Locker, logger *slog.Logger, config ReconcileMakeupConfig) *ReconcileMakeupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultReconcileMakeupConfig().Timeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = config.Timeout + time.Minute
	}
	return &ReconcileMakeupJob{
		reconciler: reconciler,
		locker:     locker,
		today:      timeutil.Today,
		logger:     logger.With("job", "reconcile_makeup"),
		config:     config,
	}
}

// Name returns the job name.
func (j *ReconcileMakeupJob) Name() string {
	return "reconcile_makeup"
}

// Description returns a human-readable description.
func (j *ReconcileMakeupJob) Description() string {
	return "Re-derives makeup-hour obligations from recorded clinical absences"
}

// LastResult returns the result of the last completed pass, if any.
func (j *ReconcileMakeupJob) LastResult() *command.ReconcileMakeupHoursResult {
	return j.lastResult.Load()
}

// Window returns the attendance range of the next pass.
func (j *ReconcileMakeupJob) Window() (from, to string, err error) {
	if j.config.LookbackDays <= 0 {
		return "", "", nil
	}
	to = j.today()
	from, err = timeutil.AddDays(to, -j.config.LookbackDays)
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

// Run executes one reconciliation pass.
func (j *ReconcileMakeupJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if j.locker != nil {
		release, acquired, err := j.locker.Acquire(ctx, j.Name(), uuid.NewString(), j.config.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !acquired {
			j.logger.Info("skipping pass, another instance holds the lock")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.logger.Warn("failed to release lock", "error", err)
			}
		}()
	}

	from, to, err := j.Window()
	if err != nil {
		return err
	}

	result, err := j.reconciler.Handle(ctx, command.ReconcileMakeupHoursCommand{From: from, To: to})
	if result == nil {
		return err
	}
	j.lastResult.Store(result)

	j.logger.Info("reconcile pass finished",
		"from", from,
		"to", to,
		"students", result.Students,
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed,
		"failed", len(result.Failed),
		"duration", result.Duration.String(),
	)
	if err != nil {
		return errors.Join(fmt.Errorf("%d students failed", len(result.Failed)), err)
	}
	return nil
}
