// Package logging provides the request logging middleware.
package logging

import (
	"strings"
	"time"

	"github.com/nimburion/devserver/pkg/middleware/requestid"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/server/router"
)

// Log field names.
const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldError      = "error"
)

// Config configures request logging middleware behavior.
type Config struct {
	Enabled bool
	// LogStart emits a "request started" entry before the inner layers run.
	LogStart             bool
	ExcludedPathPrefixes []string
}

// DefaultConfig returns default request logging behavior.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		LogStart: true,
	}
}

// Logging creates middleware with default configuration.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates middleware that logs one entry when a request starts and
// one when it completes or fails. Entries carry the request id, so this layer
// must run inside the request id layer.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if !cfg.Enabled || excluded(req.URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}

			start := time.Now()
			requestID := requestid.FromContext(c)
			base := []any{
				FieldRequestID, requestID,
				FieldMethod, req.Method,
				FieldPath, req.URL.Path,
				FieldRemoteAddr, req.RemoteAddr,
			}

			if cfg.LogStart {
				log.Debug("request started", base...)
			}

			err := next(c)

			fields := append(base,
				FieldStatus, c.Response().Status(),
				FieldDurationMS, time.Since(start).Milliseconds(),
			)
			if err != nil {
				log.Error("request failed", append(fields, FieldError, err.Error())...)
				return err
			}
			log.Info("request completed", fields...)
			return nil
		}
	}
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
