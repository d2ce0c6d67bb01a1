// Package nethttp provides a net/http-based implementation of the router.Router interface.
package nethttp

import (
	"net/http"
	"sync"

	"github.com/nimburion/devserver/pkg/server/router"
)

// NetHTTPRouter implements router.Router using net/http and a simple pattern matcher.
// Groups share the route table, fallback and error handler of the router they came from.
type NetHTTPRouter struct {
	shared     *shared
	middleware []router.MiddlewareFunc
	prefix     string
}

type shared struct {
	mu           sync.RWMutex
	routes       []route
	fallback     router.HandlerFunc
	errorHandler router.ErrorHandler
}

type route struct {
	method  string
	pattern string
	handler router.HandlerFunc
}

// NewRouter creates a new NetHTTPRouter.
func NewRouter() *NetHTTPRouter {
	return &NetHTTPRouter{
		shared: &shared{errorHandler: router.DefaultErrorHandler},
	}
}

// GET registers a GET route.
func (r *NetHTTPRouter) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodGet, path, handler, middleware)
}

// POST registers a POST route.
func (r *NetHTTPRouter) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPost, path, handler, middleware)
}

// PUT registers a PUT route.
func (r *NetHTTPRouter) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPut, path, handler, middleware)
}

// DELETE registers a DELETE route.
func (r *NetHTTPRouter) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodDelete, path, handler, middleware)
}

// PATCH registers a PATCH route.
func (r *NetHTTPRouter) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPatch, path, handler, middleware)
}

// Group creates a route group with common prefix and middleware.
func (r *NetHTTPRouter) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.shared.mu.RLock()
	combined := append([]router.MiddlewareFunc{}, r.middleware...)
	r.shared.mu.RUnlock()

	return &NetHTTPRouter{
		shared:     r.shared,
		middleware: append(combined, middleware...),
		prefix:     r.prefix + prefix,
	}
}

// Use applies middleware to all routes registered afterwards.
func (r *NetHTTPRouter) Use(middleware ...router.MiddlewareFunc) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// Fallback sets the handler for unmatched requests, wrapped in the current middleware.
func (r *NetHTTPRouter) Fallback(handler router.HandlerFunc) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	r.shared.fallback = router.Chain(handler, r.middleware...)
}

// SetErrorHandler sets how handler errors become responses.
func (r *NetHTTPRouter) SetErrorHandler(handler router.ErrorHandler) {
	if handler == nil {
		handler = router.DefaultErrorHandler
	}
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()
	r.shared.errorHandler = handler
}

// ServeHTTP implements http.Handler.
func (r *NetHTTPRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.shared.mu.RLock()
	routes := r.shared.routes
	fallback := r.shared.fallback
	onError := r.shared.errorHandler
	r.shared.mu.RUnlock()

	var allowed []string
	for _, rt := range routes {
		params, ok := router.MatchPath(rt.pattern, req.URL.Path)
		if !ok {
			continue
		}
		if rt.method != req.Method {
			allowed = append(allowed, rt.method)
			continue
		}

		ctx := router.NewContextWithParams(w, req, func(name string) string { return params[name] })
		if err := rt.handler(ctx); err != nil {
			onError(ctx, err)
		}
		return
	}

	ctx := router.NewContext(w, req)
	var err error
	switch {
	case len(allowed) > 0:
		err = router.MethodNotAllowed(ctx, allowed)
	case fallback != nil:
		err = fallback(ctx)
	default:
		err = router.NotFound(ctx)
	}
	if err != nil {
		onError(ctx, err)
	}
}

func (r *NetHTTPRouter) addRoute(method, path string, handler router.HandlerFunc, middleware []router.MiddlewareFunc) {
	r.shared.mu.Lock()
	defer r.shared.mu.Unlock()

	chain := append([]router.MiddlewareFunc{}, r.middleware...)
	chain = append(chain, middleware...)

	r.shared.routes = append(r.shared.routes, route{
		method:  method,
		pattern: r.prefix + path,
		handler: router.Chain(handler, chain...),
	})
}
