// Package gin provides a gin-gonic based implementation of the router.Router interface.
package gin

import (
	"net/http"
	"strings"
	"sync"

	ginpkg "github.com/gin-gonic/gin"

	"github.com/nimburion/devserver/pkg/server/router"
)

// GinRouter implements router.Router using gin-gonic/gin.
type GinRouter struct {
	engine     *ginpkg.Engine
	group      *ginpkg.RouterGroup
	table      *router.RouteTable
	state      *state
	middleware []router.MiddlewareFunc
}

type state struct {
	mu           sync.RWMutex
	fallback     router.HandlerFunc
	errorHandler router.ErrorHandler
}

// NewRouter creates a new GinRouter.
func NewRouter() *GinRouter {
	ginpkg.SetMode(ginpkg.ReleaseMode)
	engine := ginpkg.New()
	engine.HandleMethodNotAllowed = true
	engine.RedirectTrailingSlash = false

	r := &GinRouter{
		engine: engine,
		group:  &engine.RouterGroup,
		table:  router.NewRouteTable(),
		state:  &state{errorHandler: router.DefaultErrorHandler},
	}
	engine.NoRoute(r.serveNoRoute)
	engine.NoMethod(r.serveNoMethod)
	return r
}

// GET registers a handler for HTTP GET requests at the specified path.
func (r *GinRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

// POST registers a handler for HTTP POST requests at the specified path.
func (r *GinRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

// PUT registers a handler for HTTP PUT requests at the specified path.
func (r *GinRouter) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPut, path, handler, middleware)
}

// DELETE registers a handler for HTTP DELETE requests at the specified path.
func (r *GinRouter) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodDelete, path, handler, middleware)
}

// PATCH registers a handler for HTTP PATCH requests at the specified path.
func (r *GinRouter) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPatch, path, handler, middleware)
}

// Group creates a route group with common prefix and middleware.
func (r *GinRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.state.mu.RLock()
	combined := append([]router.MiddlewareFunc{}, r.middleware...)
	r.state.mu.RUnlock()

	return &GinRouter{
		engine:     r.engine,
		group:      r.group.Group(prefix),
		table:      r.table,
		state:      r.state,
		middleware: append(combined, middleware...),
	}
}

// Use applies middleware to all routes registered afterwards.
func (r *GinRouter) Use(middleware ...router.MiddlewareFunc) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// Fallback sets the handler gin runs for unmatched requests.
func (r *GinRouter) Fallback(handler router.HandlerFunc) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.fallback = router.Chain(handler, r.middleware...)
}

// SetErrorHandler sets how handler errors become responses.
func (r *GinRouter) SetErrorHandler(handler router.ErrorHandler) {
	if handler == nil {
		handler = router.DefaultErrorHandler
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.errorHandler = handler
}

// ServeHTTP implements http.Handler.
func (r *GinRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *GinRouter) handle(method, path string, h router.HandlerFunc, routeMiddleware []router.MiddlewareFunc) {
	r.state.mu.RLock()
	chain := append([]router.MiddlewareFunc{}, r.middleware...)
	r.state.mu.RUnlock()
	handler := router.Chain(h, append(chain, routeMiddleware...)...)

	r.table.Add(method, strings.TrimSuffix(r.group.BasePath(), "/")+path)
	r.group.Handle(method, path, func(gc *ginpkg.Context) {
		r.dispatch(newContext(gc), handler)
	})
}

func (r *GinRouter) serveNoRoute(gc *ginpkg.Context) {
	r.state.mu.RLock()
	fallback := r.state.fallback
	r.state.mu.RUnlock()

	if fallback == nil {
		fallback = router.NotFound
	}
	r.dispatch(newContext(gc), fallback)
}

func (r *GinRouter) serveNoMethod(gc *ginpkg.Context) {
	allowed := r.table.Allowed(gc.Request.URL.Path)
	r.dispatch(newContext(gc), func(c router.Context) error {
		return router.MethodNotAllowed(c, allowed)
	})
}

func (r *GinRouter) dispatch(ctx router.Context, handler router.HandlerFunc) {
	if err := handler(ctx); err != nil {
		r.state.mu.RLock()
		onError := r.state.errorHandler
		r.state.mu.RUnlock()
		onError(ctx, err)
	}
}

// newContext adapts a gin.Context. gin's writer defers the header until the
// first body write, so it gets its own tracker to report WriteHeader calls.
func newContext(gc *ginpkg.Context) router.Context {
	return router.NewContextWithParams(router.NewResponseWriter(gc.Writer), gc.Request, gc.Param)
}
