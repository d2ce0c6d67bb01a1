package server

import (
	"context"
	"net/http"

	"github.com/nimburion/devserver/pkg/health"
	"github.com/nimburion/devserver/pkg/middleware/recovery"
	"github.com/nimburion/devserver/pkg/middleware/requestid"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/observability/metrics"
	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/version"
)

// RegisterManagementRoutes registers the admin endpoints on r:
//   - /health: liveness, always 200
//   - /ready: readiness from checks, 503 when any check is unhealthy
//   - /metrics: Prometheus exposition of reg
//   - /version: build metadata
func RegisterManagementRoutes(r router.Router, reg *metrics.Registry, checks *health.Registry, log logger.Logger) {
	r.Use(
		requestid.RequestID(),
		recovery.Recovery(log),
	)

	r.GET("/health", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": string(health.StatusHealthy)})
	})
	if checks != nil {
		r.GET("/ready", func(c router.Context) error {
			result := checks.Check(c.Request().Context())
			status := http.StatusOK
			if !result.Ready() {
				status = http.StatusServiceUnavailable
			}
			return c.JSON(status, result)
		})
	}
	if reg != nil {
		metricsHandler := reg.Handler()
		r.GET("/metrics", func(c router.Context) error {
			metricsHandler.ServeHTTP(c.Response(), c.Request())
			return nil
		})
	}
	r.GET("/version", func(c router.Context) error {
		return c.JSON(http.StatusOK, version.Current())
	})
}

// drainChecker turns unhealthy once the coordinator leaves Running so load
// balancers stop routing new traffic during the drain.
func drainChecker(c *Coordinator) health.Checker {
	return health.NewCustomChecker("shutdown", func(context.Context) (health.Status, string, error) {
		if state := c.State(); state != StateRunning {
			return health.StatusUnhealthy, state.String(), nil
		}
		return health.StatusHealthy, StateRunning.String(), nil
	})
}
