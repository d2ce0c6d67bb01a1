// Package gorilla provides a gorilla/mux based implementation of the router.Router interface.
package gorilla

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/nimburion/devserver/pkg/server/router"
)

// GorillaRouter implements router.Router using gorilla/mux.
// Groups register on the root mux with their prefix so that the not-found
// and method-not-allowed handlers of the root apply to every route.
type GorillaRouter struct {
	router     *mux.Router
	table      *router.RouteTable
	state      *state
	middleware []router.MiddlewareFunc
	prefix     string
}

type state struct {
	mu           sync.RWMutex
	fallback     router.HandlerFunc
	errorHandler router.ErrorHandler
}

// NewRouter creates a new GorillaRouter.
func NewRouter() *GorillaRouter {
	r := &GorillaRouter{
		router: mux.NewRouter(),
		table:  router.NewRouteTable(),
		state:  &state{errorHandler: router.DefaultErrorHandler},
	}
	// Paths match as sent; mux would otherwise redirect //a and /a/./b.
	r.router.SkipClean(true)
	r.router.NotFoundHandler = http.HandlerFunc(r.serveNotFound)
	r.router.MethodNotAllowedHandler = http.HandlerFunc(r.serveMethodNotAllowed)
	return r
}

func (r *GorillaRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

func (r *GorillaRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

func (r *GorillaRouter) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPut, path, handler, middleware)
}

func (r *GorillaRouter) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodDelete, path, handler, middleware)
}

func (r *GorillaRouter) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPatch, path, handler, middleware)
}

// Group creates a route group with common prefix and middleware.
func (r *GorillaRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.state.mu.RLock()
	combined := append([]router.MiddlewareFunc{}, r.middleware...)
	r.state.mu.RUnlock()

	return &GorillaRouter{
		router:     r.router,
		table:      r.table,
		state:      r.state,
		middleware: append(combined, middleware...),
		prefix:     r.prefix + prefix,
	}
}

// Use applies middleware to all routes registered afterwards.
func (r *GorillaRouter) Use(middleware ...router.MiddlewareFunc) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// Fallback sets the handler for unmatched requests.
func (r *GorillaRouter) Fallback(handler router.HandlerFunc) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.fallback = router.Chain(handler, r.middleware...)
}

// SetErrorHandler sets how handler errors become responses.
func (r *GorillaRouter) SetErrorHandler(handler router.ErrorHandler) {
	if handler == nil {
		handler = router.DefaultErrorHandler
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.errorHandler = handler
}

// ServeHTTP implements http.Handler.
func (r *GorillaRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func (r *GorillaRouter) handle(method, path string, h router.HandlerFunc, routeMiddleware []router.MiddlewareFunc) {
	r.state.mu.RLock()
	chain := append([]router.MiddlewareFunc{}, r.middleware...)
	r.state.mu.RUnlock()
	handler := router.Chain(h, append(chain, routeMiddleware...)...)

	fullPath := r.prefix + path
	r.table.Add(method, fullPath)

	r.router.HandleFunc(toMuxPath(fullPath), func(w http.ResponseWriter, req *http.Request) {
		ctx := router.NewContextWithParams(w, req, func(name string) string {
			return mux.Vars(req)[name]
		})
		r.dispatch(ctx, handler)
	}).Methods(method)
}

func (r *GorillaRouter) serveNotFound(w http.ResponseWriter, req *http.Request) {
	r.state.mu.RLock()
	fallback := r.state.fallback
	r.state.mu.RUnlock()

	if fallback == nil {
		fallback = router.NotFound
	}
	r.dispatch(router.NewContext(w, req), fallback)
}

func (r *GorillaRouter) serveMethodNotAllowed(w http.ResponseWriter, req *http.Request) {
	allowed := r.table.Allowed(req.URL.Path)
	r.dispatch(router.NewContext(w, req), func(c router.Context) error {
		return router.MethodNotAllowed(c, allowed)
	})
}

func (r *GorillaRouter) dispatch(ctx router.Context, handler router.HandlerFunc) {
	if err := handler(ctx); err != nil {
		r.state.mu.RLock()
		onError := r.state.errorHandler
		r.state.mu.RUnlock()
		onError(ctx, err)
	}
}

func toMuxPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}
