package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nursetrack/clinical-hours/internal/infrastructure/scheduler"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/scheduler/jobs"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background scheduler without the API",
	Long: `Run the scheduled jobs only. The reconcile_makeup job re-derives makeup
obligations from clinical attendance inside the configured lookback window.
With Redis enabled, several workers may run; one pass at a time holds the lock.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{withEvents: true, migrate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.log.Info("worker is running", logger.Count("jobs", len(sched.ListJobs())))

	<-ctx.Done()
	a.log.Info("shutting down worker")
	return sched.Stop()
}

// newScheduler registers the background jobs.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	schedule, err := scheduler.ParseSchedule(a.cfg.Scheduler.ReconcileSchedule)
	if err != nil {
		return nil, fmt.Errorf("scheduler.reconcile_schedule: %w", err)
	}

	var locker jobs.Locker
	if a.cache != nil {
		locker = a.cache
	}
	job := jobs.NewReconcileMakeupJob(a.deps.ReconcileMakeupHours, locker, a.slog, jobs.ReconcileMakeupConfig{
		LookbackDays: a.cfg.Scheduler.ReconcileLookbackDays,
		Timeout:      a.cfg.Scheduler.JobTimeout,
	})

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   a.slog,
		Timezone: a.cfg.App.Location(),
	})
	if err := sched.Register(job, schedule); err != nil {
		return nil, err
	}
	return sched, nil
}
