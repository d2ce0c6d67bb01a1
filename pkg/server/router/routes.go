package router

import (
	"strings"
	"sync"
)

// RouteTable records registered (method, pattern) pairs so adapters can
// report which methods a path accepts when answering 405.
type RouteTable struct {
	mu      sync.RWMutex
	entries []routeEntry
}

type routeEntry struct {
	method  string
	pattern string
}

// NewRouteTable creates an empty RouteTable.
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

// Add records a route.
func (t *RouteTable) Add(method, pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, routeEntry{method: method, pattern: pattern})
}

// Allowed returns the methods registered for patterns matching path, in registration order.
func (t *RouteTable) Allowed(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var methods []string
	for _, e := range t.entries {
		if _, ok := MatchPath(e.pattern, path); ok {
			methods = append(methods, e.method)
		}
	}
	return methods
}

// MatchPath checks if a pattern matches a path and extracts parameters.
// Supports patterns like /users/:id/posts/:postId. Segments compare exactly,
// so a trailing or doubled slash is a different path, and a parameter never
// matches an empty segment.
func MatchPath(pattern, path string) (map[string]string, bool) {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return nil, false
	}

	params := make(map[string]string)
	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") {
			if pathParts[i] == "" {
				return nil, false
			}
			params[part[1:]] = pathParts[i]
		} else if part != pathParts[i] {
			return nil, false
		}
	}

	return params, true
}
