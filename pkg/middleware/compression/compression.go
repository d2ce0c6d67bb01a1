// Package compression negotiates brotli or gzip response encoding from Accept-Encoding.
package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/nimburion/devserver/pkg/server/router"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// Config controls response compression behavior.
type Config struct {
	Enabled      bool
	EnableGzip   bool
	EnableBrotli bool
	GzipLevel    int
	BrotliLevel  int
	// MinSize is the number of body bytes buffered before deciding to compress.
	MinSize int
	// CompressibleContentTypes are content-type prefixes eligible for compression.
	CompressibleContentTypes []string
	ExcludedPathPrefixes     []string
}

// DefaultConfig enables both encodings for textual content of any size.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		EnableGzip:   true,
		EnableBrotli: true,
		GzipLevel:    gzip.DefaultCompression,
		BrotliLevel:  4,
		CompressibleContentTypes: []string{
			"text/",
			"application/json",
			"application/javascript",
			"application/xml",
			"image/svg+xml",
		},
	}
}

// Middleware compresses HTTP responses using Brotli and Gzip based on Accept-Encoding negotiation.
// The encoder is flushed and closed before the middleware returns.
func Middleware(cfg Config) router.MiddlewareFunc {
	cfg = normalizeConfig(cfg)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if !cfg.Enabled || req.Method == http.MethodHead || excluded(req.URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}

			encoding := negotiateEncoding(req.Header.Get("Accept-Encoding"), cfg)
			if encoding == "" {
				return next(c)
			}

			appendVary(c.Response().Header(), "Accept-Encoding")

			base := c.Response()
			wrapped := &compressWriter{base: base, encoding: encoding, cfg: cfg}
			c.SetResponse(wrapped)
			defer func() {
				_ = wrapped.Close()
				c.SetResponse(base)
			}()

			return next(c)
		}
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = def.GzipLevel
	}
	if cfg.BrotliLevel <= 0 {
		cfg.BrotliLevel = def.BrotliLevel
	}
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if len(cfg.CompressibleContentTypes) == 0 {
		cfg.CompressibleContentTypes = def.CompressibleContentTypes
	}
	return cfg
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// negotiateEncoding picks the enabled encoding with the highest q-value.
// Brotli wins ties; "*" stands in for encodings not listed explicitly.
func negotiateEncoding(acceptEncoding string, cfg Config) string {
	if acceptEncoding == "" {
		return ""
	}

	weights := parseAcceptEncoding(acceptEncoding)
	weight := func(name string) float64 {
		if q, ok := weights[name]; ok {
			return q
		}
		return weights["*"]
	}

	best, bestQ := "", 0.0
	if cfg.EnableBrotli {
		if q := weight(encodingBrotli); q > bestQ {
			best, bestQ = encodingBrotli, q
		}
	}
	if cfg.EnableGzip {
		if q := weight(encodingGzip); q > bestQ {
			best = encodingGzip
		}
	}
	return best
}

func parseAcceptEncoding(header string) map[string]float64 {
	weights := make(map[string]float64)
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(strings.TrimSpace(part), ";")
		name := strings.ToLower(strings.TrimSpace(sections[0]))
		if name == "" {
			continue
		}
		q := 1.0
		for _, section := range sections[1:] {
			kv := strings.SplitN(strings.TrimSpace(section), "=", 2)
			if len(kv) != 2 || !strings.EqualFold(kv[0], "q") {
				continue
			}
			if parsed, err := strconv.ParseFloat(kv[1], 64); err == nil {
				q = parsed
			}
		}
		weights[name] = q
	}
	return weights
}

// compressWriter buffers up to MinSize bytes, then commits to either the
// compressed or the plain path. Headers are only sent on commit so that
// Content-Encoding can still be added.
type compressWriter struct {
	base     router.ResponseWriter
	encoding string
	cfg      Config

	status        int
	headerWritten bool
	decided       bool
	encoder       io.WriteCloser
	buffer        bytes.Buffer
}

func (w *compressWriter) Header() http.Header {
	return w.base.Header()
}

func (w *compressWriter) WriteHeader(code int) {
	if w.headerWritten {
		return
	}
	w.status = code
	w.headerWritten = true
	if noBodyStatus(code) {
		w.decided = true
		w.base.WriteHeader(code)
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}

	if w.decided {
		if w.encoder != nil {
			return w.encoder.Write(p)
		}
		return w.base.Write(p)
	}

	_, _ = w.buffer.Write(p)
	if w.buffer.Len() < w.cfg.MinSize {
		return len(p), nil
	}
	if err := w.decide(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *compressWriter) decide() error {
	w.decided = true

	if !w.shouldCompress() {
		if !w.base.Written() {
			w.base.WriteHeader(w.statusOrOK())
		}
		if w.buffer.Len() == 0 {
			return nil
		}
		_, err := w.base.Write(w.buffer.Bytes())
		w.buffer.Reset()
		return err
	}

	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", w.encoding)
	appendVary(h, "Accept-Encoding")
	if !w.base.Written() {
		w.base.WriteHeader(w.statusOrOK())
	}

	switch w.encoding {
	case encodingBrotli:
		w.encoder = brotli.NewWriterLevel(w.base, w.cfg.BrotliLevel)
	case encodingGzip:
		gz, err := gzip.NewWriterLevel(w.base, w.cfg.GzipLevel)
		if err != nil {
			return fmt.Errorf("create gzip writer: %w", err)
		}
		w.encoder = gz
	}

	if w.buffer.Len() == 0 {
		return nil
	}
	_, err := w.encoder.Write(w.buffer.Bytes())
	w.buffer.Reset()
	return err
}

func (w *compressWriter) shouldCompress() bool {
	if noBodyStatus(w.statusOrOK()) || w.buffer.Len() < w.cfg.MinSize {
		return false
	}
	if w.statusOrOK() == http.StatusPartialContent {
		return false
	}
	if w.Header().Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(w.Header().Get("Content-Type")))
	if ct == "" {
		return true
	}
	for _, prefix := range w.cfg.CompressibleContentTypes {
		if strings.HasPrefix(ct, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// Close commits any buffered bytes and finishes the encoded stream.
// A handler that wrote nothing still gets its status sent.
func (w *compressWriter) Close() error {
	if !w.headerWritten {
		return nil
	}
	if !w.decided {
		if err := w.decide(); err != nil {
			return err
		}
	}
	if w.encoder != nil {
		return w.encoder.Close()
	}
	return nil
}

func (w *compressWriter) statusOrOK() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *compressWriter) Status() int {
	if w.base.Written() {
		return w.base.Status()
	}
	return w.statusOrOK()
}

func (w *compressWriter) Written() bool {
	return w.headerWritten || w.base.Written()
}

func (w *compressWriter) Flush() {
	if !w.decided && w.headerWritten {
		_ = w.decide()
	}
	if f, ok := w.encoder.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.base.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.base.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (w *compressWriter) Unwrap() http.ResponseWriter {
	return w.base
}

func noBodyStatus(code int) bool {
	return code == http.StatusNoContent || code == http.StatusNotModified || (code >= 100 && code < 200)
}

func appendVary(header http.Header, value string) {
	current := header.Get("Vary")
	if current == "" {
		header.Set("Vary", value)
		return
	}
	for _, part := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}
	header.Set("Vary", current+", "+value)
}
