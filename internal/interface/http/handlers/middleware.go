package handlers

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/nursetrack/clinical-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth checks API keys against bcrypt hashes.
type APIKeyAuth struct {
	headerName string
	hashes     [][]byte

	// verified remembers digests of keys that already matched, so bcrypt
	// runs once per key rather than once per request.
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewAPIKeyAuth creates an authenticator. Blank hashes are ignored.
func NewAPIKeyAuth(headerName string, hashes []string) *APIKeyAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	a := &APIKeyAuth{
		headerName: headerName,
		verified:   make(map[[sha256.Size]byte]struct{}),
	}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.hashes) > 0
}

// IsValid checks if an API key matches one of the hashes.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	a.mu.RLock()
	_, ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			a.mu.Lock()
			a.verified[digest] = struct{}{}
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// Middleware rejects requests without a valid key. It lets everything
// through when no key is configured.
func (a *APIKeyAuth) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.Enabled() {
			return c.Next()
		}

		key := c.Get(a.headerName)
		if key == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			return Error(c, fiber.StatusUnauthorized, "API key is required")
		}
		if !a.IsValid(key) {
			return Error(c, fiber.StatusUnauthorized, "invalid API key")
		}
		return c.Next()
	}
}

// HashAPIKey returns the bcrypt hash to put in configuration for key.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// RequestContext bounds each request by timeout, attaches a request-scoped
// logger to the user context and logs the outcome.
func RequestContext(log *logger.Logger, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.GetRespHeader(fiber.HeaderXRequestID)
		reqLog := log.WithRequestID(requestID)

		ctx := logger.WithContext(c.Context(), reqLog)
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		c.SetUserContext(ctx)

		err := c.Next()
		if err != nil {
			// Let the error handler write the response before logging its status.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []logger.Field{
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			reqLog.Error("request completed", fields...)
		case status >= fiber.StatusBadRequest:
			reqLog.Warn("request completed", fields...)
		default:
			reqLog.Debug("request completed", fields...)
		}
		return nil
	}
}

// correlationID returns the request id to stamp on domain events.
func correlationID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
