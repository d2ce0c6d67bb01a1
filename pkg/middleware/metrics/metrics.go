// Package metrics records Prometheus request metrics.
package metrics

import (
	"strings"
	"time"

	"github.com/nimburion/devserver/pkg/observability/metrics"
	"github.com/nimburion/devserver/pkg/server/router"
)

// StaticPathLabel is the path label used for requests outside the API prefixes.
const StaticPathLabel = "/*static"

// Config selects which paths keep their own label.
type Config struct {
	// LabeledPathPrefixes keep the request path as the label. Other paths are
	// served by the static fallback and share StaticPathLabel so the label set stays bounded.
	LabeledPathPrefixes []string
}

// DefaultConfig labels every /api path individually.
func DefaultConfig() Config {
	return Config{LabeledPathPrefixes: []string{"/api/"}}
}

// Metrics creates middleware recording request duration, count and in-flight requests.
func Metrics(m *metrics.HTTPMetrics) router.MiddlewareFunc {
	return WithConfig(m, DefaultConfig())
}

// WithConfig creates metrics middleware with custom path labelling.
func WithConfig(m *metrics.HTTPMetrics, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			m.IncInFlight()
			defer m.DecInFlight()

			start := time.Now()
			err := next(c)

			m.Observe(
				c.Request().Method,
				cfg.pathLabel(c.Request().URL.Path),
				c.Response().Status(),
				time.Since(start),
			)
			return err
		}
	}
}

func (c Config) pathLabel(path string) string {
	for _, prefix := range c.LabeledPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return path
		}
	}
	return StaticPathLabel
}
