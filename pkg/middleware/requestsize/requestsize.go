// Package requestsize caps request body size.
package requestsize

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/server/router"
)

// DefaultMaxBytes is the default body limit for JSON endpoints.
const DefaultMaxBytes int64 = 2 << 20

// Middleware enforces a maximum request body size in bytes.
// A non-positive maxBytes disables the middleware. Oversized bodies surface as
// a 413 *controller.AppError for the router's error handler to render.
func Middleware(maxBytes int64) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if maxBytes <= 0 {
				return next(c)
			}

			req := c.Request()
			if req == nil || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			// Fail fast when Content-Length is declared and exceeds the limit.
			if req.ContentLength > maxBytes {
				return tooLarge(maxBytes, nil)
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes)
			c.SetRequest(req)

			err := next(c)
			var maxBytesErr *http.MaxBytesError
			if err != nil && errors.As(err, &maxBytesErr) {
				return tooLarge(maxBytes, err)
			}
			return err
		}
	}
}

func tooLarge(maxBytes int64, cause error) error {
	return controller.NewPayloadTooLargeError(
		fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", maxBytes), cause)
}
