// Package router provides an abstraction layer for HTTP routing.
// It defines interfaces that allow pluggable router implementations (net/http, gin-gonic, gorilla/mux)
// and the middleware contract shared by every layer of the request pipeline.
package router

import "net/http"

// Router defines the interface for HTTP routing.
// Routes are matched on method and exact path first; unmatched requests go to
// the fallback handler, and a known path requested with the wrong method is
// answered with 405 Method Not Allowed instead of falling through.
type Router interface {
	// HTTP method handlers
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Group creates a route group with common prefix and middleware
	Group(prefix string, middleware ...MiddlewareFunc) Router

	// Use applies middleware to all routes registered afterwards
	Use(middleware ...MiddlewareFunc)

	// Fallback sets the handler for requests no route matches.
	// Without a fallback the router answers 404.
	Fallback(handler HandlerFunc)

	// SetErrorHandler sets how errors returned by handlers become responses.
	SetErrorHandler(handler ErrorHandler)

	// ServeHTTP implements http.Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc is the function signature for route handlers.
// It receives a Context and returns an error.
type HandlerFunc func(Context) error

// MiddlewareFunc is the function signature for middleware.
// It wraps a HandlerFunc and returns a new HandlerFunc.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// ErrorHandler writes a response for an error returned by a handler.
type ErrorHandler func(Context, error)

// Context provides access to request and response in a router-agnostic way.
type Context interface {
	// Request returns the underlying HTTP request
	Request() *http.Request

	// SetRequest sets the HTTP request (useful for middleware that modifies the request)
	SetRequest(r *http.Request)

	// Response returns the response writer
	Response() ResponseWriter

	// SetResponse sets the HTTP response writer (useful for middleware that wraps responses)
	SetResponse(w ResponseWriter)

	// Param returns a URL parameter by name (e.g., /users/:id)
	Param(name string) string

	// Query returns a query parameter by name (e.g., /users?name=john)
	Query(name string) string

	// Bind parses the request body into the provided struct
	Bind(v interface{}) error

	// JSON sends a JSON response with the given status code
	JSON(code int, v interface{}) error

	// String sends a plain text response with the given status code
	String(code int, s string) error

	// Get retrieves a value from the context by key
	Get(key string) interface{}

	// Set stores a value in the context by key
	Set(key string, value interface{})
}

// ResponseWriter wraps http.ResponseWriter to track response status.
type ResponseWriter interface {
	http.ResponseWriter

	// Status returns the HTTP status code of the response
	Status() int

	// Written returns whether the response has been written
	Written() bool
}

// Chain wraps h with the given middleware. The first middleware is the
// outermost: it sees the request first and the outcome last.
func Chain(h HandlerFunc, middleware ...MiddlewareFunc) HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// DefaultErrorHandler writes a plain 500 unless a response was already started.
func DefaultErrorHandler(c Context, err error) {
	if err == nil || c.Response().Written() {
		return
	}
	http.Error(c.Response(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// MethodNotAllowed answers 405 with the Allow header listing the registered methods.
func MethodNotAllowed(c Context, allowed []string) error {
	if len(allowed) > 0 {
		c.Response().Header().Set("Allow", joinMethods(allowed))
	}
	return c.String(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
}

// NotFound answers the terminal 404.
func NotFound(c Context) error {
	return c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func joinMethods(methods []string) string {
	out := ""
	seen := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		if out != "" {
			out += ", "
		}
		out += m
	}
	return out
}
