// Package tracing opens a server span per request and propagates W3C trace context.
package tracing

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/devserver/pkg/middleware/requestid"
	"github.com/nimburion/devserver/pkg/server/router"
)

// Config holds configuration for the tracing middleware.
type Config struct {
	// TracerName identifies the instrumentation scope. Defaults to "http-server".
	TracerName string
	// Provider overrides the global tracer provider.
	Provider trace.TracerProvider
	// Propagator overrides the global text map propagator.
	Propagator propagation.TextMapPropagator
	// SpanNameFormatter formats the span name. Defaults to "HTTP {method} {path}".
	SpanNameFormatter func(router.Context) string
	// ExcludedPathPrefixes disables tracing for matching paths.
	ExcludedPathPrefixes []string
}

// Tracing creates middleware that wraps every request in a server span.
// Without a configured provider the global one is used, which is a no-op
// until tracing is enabled.
func Tracing(cfg Config) router.MiddlewareFunc {
	if cfg.TracerName == "" {
		cfg.TracerName = "http-server"
	}
	if cfg.SpanNameFormatter == nil {
		cfg.SpanNameFormatter = defaultSpanName
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			for _, prefix := range cfg.ExcludedPathPrefixes {
				if prefix != "" && strings.HasPrefix(req.URL.Path, prefix) {
					return next(c)
				}
			}

			provider := cfg.Provider
			if provider == nil {
				provider = otel.GetTracerProvider()
			}
			propagator := cfg.Propagator
			if propagator == nil {
				propagator = otel.GetTextMapPropagator()
			}

			ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := provider.Tracer(cfg.TracerName).Start(ctx, cfg.SpanNameFormatter(c), trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.target", req.URL.Path),
				attribute.String("http.host", req.Host),
				attribute.String("http.user_agent", req.UserAgent()),
				attribute.String("http.remote_addr", req.RemoteAddr),
			)
			if id := requestid.GetRequestID(req.Context()); id != "" {
				span.SetAttributes(attribute.String("request.id", id))
			}

			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}

			status := c.Response().Status()
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return nil
		}
	}
}

func defaultSpanName(c router.Context) string {
	return fmt.Sprintf("HTTP %s %s", c.Request().Method, c.Request().URL.Path)
}
