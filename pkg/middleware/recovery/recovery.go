// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/server/router"
)

// Recovery creates middleware that recovers from panics in inner layers.
// The panic is logged with its stack and the request id, and a 500 is written
// unless the response was already started. http.ErrAbortHandler is re-raised
// so net/http can abort the connection as intended.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				reqLog := log.WithContext(c.Request().Context())
				reqLog.Error("panic recovered",
					"panic", rec,
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"stack", string(debug.Stack()),
				)

				if c.Response().Written() {
					return
				}
				if writeErr := controller.Error(c, controller.NewInternalError(fmt.Errorf("panic: %v", rec))); writeErr != nil {
					reqLog.Error("failed to send error response", "error", writeErr)
				}
				err = nil
			}()

			return next(c)
		}
	}
}
