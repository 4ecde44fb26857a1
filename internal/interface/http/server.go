// Package http exposes the compliance engine over a REST API.
package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/nursetrack/clinical-hours/internal/interface/http/handlers"
	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Address to listen on, "host:port".
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context handed to the application layer.
	RequestTimeout time.Duration

	// BodyLimit is the maximum request body size in bytes.
	BodyLimit int

	// CORSOrigins is a comma-separated origin list, "*" for any.
	CORSOrigins string

	// APIKeyHeader is the header carrying the API key.
	APIKeyHeader string

	// APIKeyHashes are bcrypt hashes of accepted keys. Empty disables auth.
	APIKeyHashes []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Address:        "0.0.0.0:8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
		BodyLimit:      1 << 20,
		CORSOrigins:    "*",
		APIKeyHeader:   "X-API-Key",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	app    *fiber.App
	logger *logger.Logger

	mu      sync.RWMutex
	running bool
}

// NewServer creates the fiber app and mounts every route.
func NewServer(config Config, deps handlers.Dependencies, health *handlers.HealthChecker, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("http"))
	if health == nil {
		health = handlers.NewHealthChecker("")
	}
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = "X-API-Key"
	}

	app := fiber.New(fiber.Config{
		AppName:               "clinical-hours",
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             config.BodyLimit,
		ErrorHandler:          handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(handlers.RequestContext(log, config.RequestTimeout))
	if config.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: config.CORSOrigins,
			AllowMethods: "GET,POST,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + config.APIKeyHeader,
		}))
	}

	app.Get("/health", health.Handler())

	auth := handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeyHashes)
	if !auth.Enabled() {
		log.Warn("API key authentication is disabled")
	}
	v1 := app.Group("/api/v1", auth.Middleware())
	handlers.NewAPI(deps).Register(v1)

	app.Use(func(c *fiber.Ctx) error {
		return handlers.Error(c, fiber.StatusNotFound, "route not found")
	})

	return &Server{config: config, app: app, logger: log}
}

// App returns the fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", logger.String("address", s.config.Address))
		errCh <- s.app.Listen(s.config.Address)
	}()

	select {
	case err := <-errCh:
		s.setStopped()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	err := s.app.ShutdownWithTimeout(shutdownTimeout)
	s.setStopped()
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
