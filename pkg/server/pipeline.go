package server

import (
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/devserver/pkg/config"
	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/middleware/compression"
	"github.com/nimburion/devserver/pkg/middleware/cors"
	"github.com/nimburion/devserver/pkg/middleware/logging"
	metricsmiddleware "github.com/nimburion/devserver/pkg/middleware/metrics"
	"github.com/nimburion/devserver/pkg/middleware/recovery"
	"github.com/nimburion/devserver/pkg/middleware/requestid"
	"github.com/nimburion/devserver/pkg/middleware/tracing"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/observability/metrics"
	"github.com/nimburion/devserver/pkg/server/router"
)

// Layer is a named middleware in the request pipeline.
type Layer struct {
	Name       string
	Middleware router.MiddlewareFunc
}

// Pipeline wraps a router in an ordered list of layers. The first layer is
// the outermost one. Errors and panics that escape every layer are turned
// into a response at the boundary so the connection is never left without one.
type Pipeline struct {
	handler router.HandlerFunc
	names   []string
	log     logger.Logger
	onError router.ErrorHandler
}

// NewPipeline assembles layers around r.
func NewPipeline(r http.Handler, log logger.Logger, layers ...Layer) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}

	inner := func(c router.Context) error {
		r.ServeHTTP(c.Response(), c.Request())
		return nil
	}

	funcs := make([]router.MiddlewareFunc, 0, len(layers))
	names := make([]string, 0, len(layers))
	for _, layer := range layers {
		if layer.Middleware == nil {
			continue
		}
		funcs = append(funcs, layer.Middleware)
		names = append(names, layer.Name)
	}
	if len(names) > 0 {
		log.Debug("active middleware stack", "middlewares", strings.Join(names, ", "))
	}

	return &Pipeline{
		handler: router.Chain(inner, funcs...),
		names:   names,
		log:     log,
		onError: controller.ErrorHandler(log),
	}
}

// Layers returns the layer names, outermost first.
func (p *Pipeline) Layers() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// ServeHTTP runs the request through every layer and then the router.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c := router.NewContext(w, req)

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		p.log.WithContext(c.Request().Context()).Error("panic escaped request pipeline",
			"panic", rec,
			"method", req.Method,
			"path", req.URL.Path,
		)
		if !c.Response().Written() {
			_ = controller.Error(c, controller.NewInternalError(fmt.Errorf("panic: %v", rec)))
		}
	}()

	if err := p.handler(c); err != nil {
		p.onError(c, err)
	}
}

// PipelineOptions carries the collaborators of the standard layer set.
type PipelineOptions struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Registry
	Tracer  trace.TracerProvider
}

// DefaultLayers returns the public pipeline in serving order: correlation id,
// tracing, request logging, metrics, compression, CORS and panic recovery.
func DefaultLayers(opts PipelineOptions) []Layer {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	layers := []Layer{
		{Name: "request_id", Middleware: requestid.RequestID()},
		{Name: "tracing", Middleware: tracing.Tracing(tracing.Config{
			TracerName: "devserver/http",
			Provider:   opts.Tracer,
		})},
		{Name: "logging", Middleware: logging.WithConfig(log, logging.Config{
			Enabled:              cfg.Observability.RequestLogging.Enabled,
			LogStart:             cfg.Observability.RequestLogging.LogStart,
			ExcludedPathPrefixes: cfg.Observability.RequestLogging.ExcludedPathPrefixes,
		})},
	}
	if opts.Metrics != nil {
		layers = append(layers, Layer{Name: "metrics", Middleware: metricsmiddleware.Metrics(opts.Metrics.HTTP())})
	}

	compressionCfg := compression.DefaultConfig()
	compressionCfg.Enabled = cfg.Compression.Enabled
	compressionCfg.EnableGzip = cfg.Compression.EnableGzip
	compressionCfg.EnableBrotli = cfg.Compression.EnableBrotli
	compressionCfg.MinSize = cfg.Compression.MinSize

	layers = append(layers,
		Layer{Name: "compression", Middleware: compression.Middleware(compressionCfg)},
		Layer{Name: "cors", Middleware: cors.Middleware(cors.Config{
			Enabled:          cfg.CORS.Enabled,
			AllowAllOrigins:  cfg.CORS.AllowAllOrigins,
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     cfg.CORS.AllowMethods,
			AllowHeaders:     cfg.CORS.AllowHeaders,
			ExposeHeaders:    cfg.CORS.ExposeHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		})},
		Layer{Name: "recovery", Middleware: recovery.Recovery(log)},
	)
	return layers
}
