package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nursetrack/clinical-hours/internal/infrastructure/scheduler"
	"github.com/nursetrack/clinical-hours/internal/interface/http"
	"github.com/nursetrack/clinical-hours/internal/interface/http/handlers"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Long: `Serve the REST API under /api/v1 with a /health probe. Unless
scheduler.enabled is false, the background jobs run in the same process.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	health := handlers.NewHealthChecker(cfg.App.Version)
	health.AddPinger("store", a.store)
	if a.cache != nil {
		health.AddPinger("redis", a.cache)
	}

	if cfg.Scheduler.Enabled {
		sched, err := a.newScheduler()
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				a.log.Warn("scheduler stop failed", logger.Err(err))
			}
		}()
	}

	srv := http.NewServer(http.Config{
		Address:        cfg.HTTP.Address(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		BodyLimit:      cfg.HTTP.BodyLimit,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		APIKeyHashes:   cfg.HTTP.APIKeyHashes,
	}, a.deps, health, a.log)

	a.log.Info("clinical hours service starting",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("store", cfg.Store.Driver),
		logger.Bool("redis", a.cache != nil),
		logger.Bool("scheduler", cfg.Scheduler.Enabled),
	)
	return srv.Start(ctx, cfg.App.ShutdownTimeout)
}
