// Package requestid attaches a correlation id to every request and its response.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/nimburion/devserver/pkg/middleware"
	"github.com/nimburion/devserver/pkg/server/router"
)

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

type appliedKey struct{}

// Config configures the correlation-id layer.
type Config struct {
	// Header overrides the header name. Defaults to RequestIDHeader.
	Header string
	// TrustIncoming keeps a non-empty inbound id instead of replacing it.
	TrustIncoming bool
	// Generator overrides id generation. Defaults to random UUIDv4.
	Generator func() string
}

// RequestID creates middleware that assigns a fresh UUIDv4 to every request,
// replacing any inbound X-Request-ID.
func RequestID() router.MiddlewareFunc {
	return WithConfig(Config{})
}

// WithConfig creates the correlation-id middleware with custom settings.
//
// The id is written to the request header, the request context, the router
// context store and the response header before the inner handler runs. The
// response header is asserted again once the inner handler returns, panics
// included, as long as the response has not been flushed. Applying the layer
// twice to the same request is a no-op the second time.
func WithConfig(cfg Config) router.MiddlewareFunc {
	header := cfg.Header
	if header == "" {
		header = RequestIDHeader
	}
	generate := cfg.Generator
	if generate == nil {
		generate = generateRequestID
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if req.Context().Value(appliedKey{}) != nil {
				return next(c)
			}

			requestID := ""
			if cfg.TrustIncoming {
				requestID = req.Header.Get(header)
			}
			if requestID == "" {
				requestID = generate()
			}

			req.Header.Set(header, requestID)
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, requestID)
			ctx = context.WithValue(ctx, appliedKey{}, struct{}{})
			c.SetRequest(req.WithContext(ctx))
			c.Set(string(middleware.RequestIDKey), requestID)
			c.Response().Header().Set(header, requestID)

			defer func() {
				if !c.Response().Written() {
					c.Response().Header().Set(header, requestID)
				}
			}()

			return next(c)
		}
	}
}

func generateRequestID() string {
	return uuid.New().String()
}

// GetRequestID extracts the request ID from a context.
// Returns empty string if no request ID is found.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// FromContext reads the id from the router context store, falling back to the request context.
func FromContext(c router.Context) string {
	if id, ok := c.Get(string(middleware.RequestIDKey)).(string); ok && id != "" {
		return id
	}
	return GetRequestID(c.Request().Context())
}
