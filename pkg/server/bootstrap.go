package server

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nimburion/devserver/pkg/api"
	"github.com/nimburion/devserver/pkg/config"
	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/health"
	"github.com/nimburion/devserver/pkg/items"
	"github.com/nimburion/devserver/pkg/middleware/ratelimit"
	"github.com/nimburion/devserver/pkg/middleware/requestsize"
	"github.com/nimburion/devserver/pkg/middleware/static"
	"github.com/nimburion/devserver/pkg/observability/logger"
	"github.com/nimburion/devserver/pkg/observability/metrics"
	"github.com/nimburion/devserver/pkg/observability/tracing"
	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/server/router/factory"
	"github.com/nimburion/devserver/pkg/version"
)

const tracerShutdownTimeout = 10 * time.Second

// Options defines inputs for building the application servers.
type Options struct {
	Config *config.Config
	Logger logger.Logger

	// Store is optional. Defaults to a store seeded with the example item.
	Store *items.Store
	// Sources are the termination triggers. Defaults to DefaultSources().
	Sources []Source
	// Tracer is optional. If nil, one is created from the observability config
	// and shut down when Run returns.
	Tracer *tracing.TracerProvider
}

// App groups the public server, the optional management server and the
// shutdown coordinator that stops them.
type App struct {
	Public      *Server
	Management  *Server
	Pipeline    *Pipeline
	Metrics     *metrics.Registry
	Health      *health.Registry
	Coordinator *Coordinator

	cfg        *config.Config
	log        logger.Logger
	tracer     *tracing.TracerProvider
	ownsTracer bool
}

// New builds the application and binds its listeners. A bind failure is
// returned before any request is served.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := opts.Logger
	if log == nil {
		zapLogger, err := logger.NewZapLogger(logger.DefaultConfig())
		if err != nil {
			return nil, err
		}
		log = zapLogger
	}
	store := opts.Store
	if store == nil {
		store = items.NewSeededStore()
	}
	sources := opts.Sources
	if sources == nil {
		sources = DefaultSources()
	}

	info := version.Current()
	app := &App{
		cfg:         cfg,
		log:         log,
		tracer:      opts.Tracer,
		Coordinator: NewCoordinator(log, sources...),
		Health:      health.NewRegistry(),
		Metrics: metrics.NewRegistry(metrics.BuildInfo{
			Version:   info.Version,
			Commit:    info.Commit,
			GoVersion: info.GoVersion,
		}),
	}
	app.Health.Register(drainChecker(app.Coordinator))
	app.Health.Register(health.NewDirectoryChecker("static_dir", cfg.HTTP.StaticDir))

	if app.tracer == nil {
		provider, err := initTracerProvider(ctx, cfg, info)
		if err != nil {
			app.Coordinator.Release()
			return nil, fmt.Errorf("initialize tracing provider: %w", err)
		}
		app.tracer = provider
		app.ownsTracer = true
	}

	if err := app.build(store); err != nil {
		app.Coordinator.Release()
		app.shutdownTracer()
		return nil, err
	}
	return app, nil
}

func (a *App) build(store *items.Store) error {
	r, err := factory.NewRouter(a.cfg.RouterType)
	if err != nil {
		return fmt.Errorf("create public router: %w", err)
	}
	r.SetErrorHandler(controller.ErrorHandler(a.log))
	api.NewHandler(store, a.cfg.Service.Environment).Register(r, a.apiMiddleware()...)
	r.Fallback(static.Root(a.cfg.HTTP.StaticDir))

	a.Pipeline = NewPipeline(r, a.log, DefaultLayers(PipelineOptions{
		Config:  a.cfg,
		Logger:  a.log,
		Metrics: a.Metrics,
		Tracer:  a.tracer.Provider(),
	})...)

	a.Public = NewServer("public", Config{
		Addr:         a.cfg.HTTP.Address(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
		DrainTimeout: a.cfg.HTTP.DrainTimeout,
	}, a.Pipeline, a.log)
	if err := a.Public.Listen(); err != nil {
		return err
	}

	if !a.cfg.Management.Enabled {
		return nil
	}

	mr, err := factory.NewRouter(a.cfg.RouterType)
	if err != nil {
		_ = a.Public.Close()
		return fmt.Errorf("create management router: %w", err)
	}
	RegisterManagementRoutes(mr, a.Metrics, a.Health, a.log)
	a.Management = NewServer("management", Config{
		Addr:         a.cfg.Management.Address(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
		DrainTimeout: a.cfg.HTTP.DrainTimeout,
	}, mr, a.log)
	if err := a.Management.Listen(); err != nil {
		_ = a.Public.Close()
		return err
	}
	return nil
}

// Run serves until a termination source fires or ctx is done, drains every
// server, and returns nil after a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	defer a.shutdownTracer()

	info := version.Current()
	a.log.Info("devserver started",
		"address", a.Public.Addr().String(),
		"static_dir", a.cfg.HTTP.StaticDir,
		"environment", a.cfg.Service.Environment,
		"router", a.cfg.RouterType,
		"version", info.Version,
	)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, cancel := a.Coordinator.Context(gctx)
	defer cancel()

	g.Go(func() error {
		// Watch only fails when gctx ends, which is not a failure of the app.
		_ = a.Coordinator.Watch(gctx)
		return nil
	})
	g.Go(func() error { return a.Public.Serve(serveCtx) })
	if a.Management != nil {
		g.Go(func() error { return a.Management.Serve(serveCtx) })
	}

	err := g.Wait()
	a.Coordinator.MarkStopped()
	if err != nil {
		a.log.Error("server stopped with error", "error", err)
		return err
	}
	a.log.Info("server stopped")
	return nil
}

func (a *App) shutdownTracer() {
	if !a.ownsTracer || a.tracer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
	defer cancel()

	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.log.Error("failed to shutdown tracing provider", "error", err)
	}
}

func initTracerProvider(ctx context.Context, cfg *config.Config, info version.Info) (*tracing.TracerProvider, error) {
	return tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		ServiceName:    info.Service,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
	})
}

// apiMiddleware rejects over-budget clients before their bodies are read.
func (a *App) apiMiddleware() []router.MiddlewareFunc {
	var mw []router.MiddlewareFunc
	if rl := a.cfg.RateLimit; rl.Enabled {
		trust := rl.TrustForwardedFor
		mw = append(mw, ratelimit.RateLimit(
			ratelimit.NewTokenBucketLimiter(rl.RequestsPerSecond, rl.Burst),
			ratelimit.Config{KeyFunc: func(c router.Context) string { return ratelimit.ClientIP(c.Request(), trust) }},
		))
	}
	return append(mw, requestsize.Middleware(a.cfg.HTTP.MaxRequestSize))
}
