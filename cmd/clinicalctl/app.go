package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/nursetrack/clinical-hours/config"
	"github.com/nursetrack/clinical-hours/internal/application/command"
	"github.com/nursetrack/clinical-hours/internal/application/eventhandler"
	"github.com/nursetrack/clinical-hours/internal/application/query"
	"github.com/nursetrack/clinical-hours/internal/application/uow"
	"github.com/nursetrack/clinical-hours/internal/domain/attendance"
	"github.com/nursetrack/clinical-hours/internal/domain/compliance"
	"github.com/nursetrack/clinical-hours/internal/domain/shared"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/messaging"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/memory"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/postgres"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/redis"
	"github.com/nursetrack/clinical-hours/internal/infrastructure/persistence/sqlite"
	"github.com/nursetrack/clinical-hours/internal/interface/http/handlers"
	"github.com/nursetrack/clinical-hours/pkg/circuitbreaker"
	"github.com/nursetrack/clinical-hours/pkg/logger"
	"github.com/nursetrack/clinical-hours/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// Shared by every subcommand: store, optional Redis, event bus, handlers.
// ══════════════════════════════════════════════════════════════════════════════

// recordStore is what the application layer and the health check need.
type recordStore interface {
	uow.Transactor
	Ping(ctx context.Context) error
}

type eventBus interface {
	shared.EventBus
	Close() error
}

type app struct {
	cfg  *config.Config
	log  *logger.Logger
	slog *slog.Logger

	store recordStore
	cache *redis.Cache
	bus   eventBus

	thresholds compliance.Thresholds
	classifier *compliance.Classifier
	derivation command.DerivationConfig
	deps       handlers.Dependencies

	closers []func()
}

type appOptions struct {
	// withEvents wires the event bus and its handlers. One-off commands
	// publish into a no-op publisher instead.
	withEvents bool

	// migrate applies pending schema migrations on open.
	migrate bool

	// output receives the logs; defaults to stdout.
	output io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	if opts.output == nil {
		opts.output = os.Stdout
	}
	timeutil.SetLocation(cfg.App.Location())

	a := &app{
		cfg:        cfg,
		log:        setupLogger(cfg, opts.output),
		slog:       setupSlog(cfg, opts.output),
		thresholds: cfg.Compliance.Thresholds(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. RECORD STORE
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.openStore(ctx, opts.migrate); err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Enabled {
		a.log.Info("connecting to redis", logger.String("addr", cfg.Redis.Addr))
		cache, err := redis.NewCache(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.cache = cache
		a.closers = append(a.closers, func() { _ = cache.Close() })
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	var publisher shared.EventPublisher = shared.NopPublisher{}
	if opts.withEvents {
		if err := a.openBus(ctx); err != nil {
			return nil, err
		}
		publisher = a.bus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	a.classifier = compliance.NewClassifier(a.thresholds)
	a.derivation = command.DerivationConfig{
		DueInDays: cfg.Makeup.DueInDays,
		NewID:     func() string { return "MKP-" + uuid.NewString() },
		Now:       timeutil.Now,
	}
	shifts := attendance.ShiftDefaults{
		Clinical:  a.thresholds.ClinicalShiftHours,
		Classroom: a.thresholds.ClassroomShiftHours,
	}
	policy := cfg.Compliance.Policy()

	var hoursCache query.HoursSummaryCache
	if a.cache != nil {
		breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			a.slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
		summaries := redis.NewHoursSummaryCache(a.cache, cfg.Redis.SummaryTTL).WithBreaker(breaker)
		// Cached classifications reflect the thresholds of whoever wrote them.
		if err := summaries.InvalidateAll(ctx); err != nil {
			a.log.Warn("could not drop cached hours summaries", logger.Err(err))
		}
		hoursCache = summaries
	}

	a.deps = handlers.Dependencies{
		RecordAttendanceDay:  command.NewRecordAttendanceDayHandler(a.store, publisher, shifts, a.derivation, a.log),
		LogMakeupHours:       command.NewLogMakeupHoursHandler(a.store, publisher, timeutil.Now, a.log),
		DeleteMakeupHours:    command.NewDeleteMakeupHoursHandler(a.store, publisher, a.log),
		AddClinicalLog:       command.NewAddClinicalLogHandler(a.store, publisher, timeutil.Now, a.log),
		ReviewClinicalLog:    command.NewReviewClinicalLogHandler(a.store, publisher, timeutil.Now, a.log),
		ReconcileMakeupHours: command.NewReconcileMakeupHoursHandler(a.store, publisher, a.derivation, cfg.Makeup.ReconcileWorkers, a.log),

		StudentHours:     query.NewGetStudentHoursSummaryHandler(a.store, a.classifier, policy, hoursCache, a.log),
		MakeupSummary:    query.NewGetMakeupHoursSummaryHandler(a.store, timeutil.Today),
		MakeupSummaries:  query.NewListMakeupSummariesHandler(a.store, timeutil.Today),
		StudentFlags:     query.NewGetStudentFlagsHandler(a.store, a.classifier, policy, timeutil.Today),
		AttendanceDay:    query.NewListAttendanceDayHandler(a.store),
		AttendanceIssues: query.NewGetAttendanceIssuesHandler(a.store, a.thresholds),
		ClinicalLogs:     query.NewListClinicalLogsHandler(a.store),

		Today: timeutil.Today,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	if a.bus != nil {
		var subs []eventhandler.Subscriber
		if hoursCache != nil {
			subs = append(subs, eventhandler.NewOnClinicalLogChangedHandler(hoursCache, a.slog))
		}
		if cfg.Observability.AuditLog {
			subs = append(subs, eventhandler.NewLedgerAuditHandler(a.slog.With("stream", "audit")))
		}
		if err := eventhandler.Register(a.bus, subs...); err != nil {
			return nil, fmt.Errorf("register event handlers: %w", err)
		}
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context, migrate bool) error {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		a.log.Warn("using the in-memory store, records are lost on exit")
		a.store = memory.NewStore()

	case config.DriverSQLite:
		a.log.Info("opening sqlite store", logger.String("path", a.cfg.SQLite.Path))
		db, err := sqlite.Open(a.cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if migrate {
			applied, err := db.Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate sqlite: %w", err)
			}
			a.log.Info("sqlite schema is up to date", logger.Count("applied", applied))
		}
		a.store = &pingStore{Transactor: sqlite.NewStore(db), ping: db.Ping}

	case config.DriverPostgres:
		a.log.Info("connecting to postgres")
		conn, err := postgres.NewConnection(ctx, postgresConfig(a.cfg))
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		if migrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
			a.log.Info("postgres schema is up to date", logger.Count("applied", applied))
		}
		a.store = &pingStore{Transactor: postgres.NewStore(conn), ping: conn.Ping}

	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	return nil
}

func (a *app) openBus(ctx context.Context) error {
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:     true,
		Logger:        a.slog,
		EnableMetrics: true,
	}

	if a.cache == nil {
		bus := messaging.NewInMemoryEventBus(local)
		a.bus = bus
		a.closers = append(a.closers, func() { _ = bus.Close() })
		return nil
	}

	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client:         a.cache.Client(),
		ChannelName:    a.cfg.Redis.EventChannel,
		LocalBusConfig: local,
		Logger:         a.slog,
	})
	if err != nil {
		return fmt.Errorf("start redis event bus: %w", err)
	}
	a.bus = bus
	a.closers = append(a.closers, func() { _ = bus.Close() })
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// pingStore attaches a health probe to a store.
type pingStore struct {
	uow.Transactor
	ping func(ctx context.Context) error
}

func (s *pingStore) Ping(ctx context.Context) error { return s.ping(ctx) }

func postgresConfig(cfg *config.Config) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = cfg.Database.URL
	pc.MaxConns = cfg.Database.MaxConns
	pc.MinConns = cfg.Database.MinConns
	if cfg.Database.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}
	return pc
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the application logger.
func setupLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	return logger.New(logger.Options{
		Output:    out,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Environment != config.EnvProduction,
	}).With(logger.String("service", cfg.App.Name))
}

// setupSlog builds the logger handed to the bus, the scheduler and the
// event handlers. JSON in production, text otherwise.
func setupSlog(cfg *config.Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if cfg.App.Environment == config.EnvProduction {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler).With("service", cfg.App.Name)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
