package router

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
)

var (
	// ErrEmptyBody is returned by Bind when the request carries no body.
	ErrEmptyBody = errors.New("request body is empty")
	// ErrUnsupportedContentType is returned by Bind for non-JSON payloads.
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// ParamFunc resolves a path parameter for adapters that extract them natively.
type ParamFunc func(name string) string

// NewContext creates a Context over a plain request/response pair.
// The pipeline uses it for the outermost layers; adapters use it for route handlers.
func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return NewContextWithParams(w, r, nil)
}

// NewContextWithParams creates a Context whose Param lookups go through params.
func NewContextWithParams(w http.ResponseWriter, r *http.Request, params ParamFunc) Context {
	return &baseContext{
		request:  r,
		response: WrapResponseWriter(w),
		params:   params,
		store:    make(map[string]interface{}),
	}
}

type baseContext struct {
	request  *http.Request
	response ResponseWriter
	params   ParamFunc
	store    map[string]interface{}
	mu       sync.RWMutex
}

func (c *baseContext) Request() *http.Request {
	return c.request
}

func (c *baseContext) SetRequest(r *http.Request) {
	c.request = r
}

func (c *baseContext) Response() ResponseWriter {
	return c.response
}

func (c *baseContext) SetResponse(w ResponseWriter) {
	c.response = w
}

func (c *baseContext) Param(name string) string {
	if c.params == nil {
		return ""
	}
	return c.params(name)
}

func (c *baseContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *baseContext) Bind(v interface{}) error {
	if c.request.Body == nil || c.request.Body == http.NoBody {
		return ErrEmptyBody
	}
	defer c.request.Body.Close()

	contentType := c.request.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	return json.NewDecoder(c.request.Body).Decode(v)
}

func (c *baseContext) JSON(code int, v interface{}) error {
	c.response.Header().Set("Content-Type", "application/json")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *baseContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := io.WriteString(c.response, s)
	return err
}

func (c *baseContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store[key]
}

func (c *baseContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
}

// WrapResponseWriter returns w when it already tracks status, otherwise wraps it.
// Reusing an existing tracker keeps Written() consistent across nested contexts.
func WrapResponseWriter(w http.ResponseWriter) ResponseWriter {
	if rw, ok := w.(ResponseWriter); ok {
		return rw
	}
	return NewResponseWriter(w)
}

// NewResponseWriter always wraps w in a fresh status tracker.
func NewResponseWriter(w http.ResponseWriter) ResponseWriter {
	return &responseWriter{ResponseWriter: w}
}

// responseWriter wraps http.ResponseWriter to track status and written state.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (w *responseWriter) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if !ok {
		return
	}
	flusher.Flush()
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *responseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *responseWriter) Written() bool {
	return w.written
}
