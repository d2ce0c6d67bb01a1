package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/server/router/nethttp"
)

func newRouter(cfg Config, path string, h router.HandlerFunc) router.Router {
	r := nethttp.NewRouter()
	r.Use(Middleware(cfg))
	r.GET(path, h)
	return r
}

func get(r router.Router, path, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_UsesBrotliWhenAccepted(t *testing.T) {
	r := newRouter(DefaultConfig(), "/api/items", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"name": "value"})
	})

	rec := get(r, "/api/items", "br, gzip")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("expected br encoding, got %q", rec.Header().Get("Content-Encoding"))
	}

	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rec.Body.Bytes())))
	if err != nil {
		t.Fatalf("failed to decode br body: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode json payload: %v", err)
	}
	if payload["name"] != "value" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestMiddleware_GzipRoundTrip(t *testing.T) {
	r := newRouter(DefaultConfig(), "/text", func(c router.Context) error {
		return c.String(http.StatusOK, "compressed-response")
	})

	rec := get(r, "/text", "gzip")
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	if !strings.Contains(rec.Header().Get("Vary"), "Accept-Encoding") {
		t.Fatalf("expected Vary to mention Accept-Encoding, got %q", rec.Header().Get("Vary"))
	}

	gz, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gz.Close()
	decoded, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("failed to decode gzip body: %v", err)
	}
	if string(decoded) != "compressed-response" {
		t.Fatalf("unexpected body %q", decoded)
	}
}

func TestNegotiateEncoding(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: ""},
		{header: "identity", want: ""},
		{header: "gzip", want: "gzip"},
		{header: "br", want: "br"},
		{header: "gzip, br", want: "br"},
		{header: "br;q=0.5, gzip;q=0.8", want: "gzip"},
		{header: "br;q=0, gzip;q=0", want: ""},
		{header: "*", want: "br"},
		{header: "br;q=0, *;q=0.3", want: "gzip"},
		{header: "GZIP;Q=1.0", want: "gzip"},
	}
	for _, tt := range tests {
		if got := negotiateEncoding(tt.header, cfg); got != tt.want {
			t.Errorf("negotiateEncoding(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}

	gzipOnly := cfg
	gzipOnly.EnableBrotli = false
	if got := negotiateEncoding("br, gzip;q=0.1", gzipOnly); got != "gzip" {
		t.Errorf("expected gzip when brotli disabled, got %q", got)
	}
}

func TestMiddleware_SkipsWhenNotAccepted(t *testing.T) {
	r := newRouter(DefaultConfig(), "/plain", func(c router.Context) error {
		return c.String(http.StatusOK, "plain")
	})

	rec := get(r, "/plain", "")
	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatalf("expected no encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	if rec.Body.String() != "plain" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestMiddleware_SkipsIncompressibleContent(t *testing.T) {
	r := newRouter(DefaultConfig(), "/logo.png", func(c router.Context) error {
		c.Response().Header().Set("Content-Type", "image/png")
		c.Response().WriteHeader(http.StatusOK)
		_, err := c.Response().Write([]byte{0x89, 'P', 'N', 'G'})
		return err
	})

	rec := get(r, "/logo.png", "gzip, br")
	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatalf("expected images to pass through, got %q", rec.Header().Get("Content-Encoding"))
	}
	if rec.Body.Len() != 4 {
		t.Fatalf("expected raw body, got %d bytes", rec.Body.Len())
	}
}

func TestMiddleware_RespectsExistingContentEncoding(t *testing.T) {
	r := newRouter(DefaultConfig(), "/pre", func(c router.Context) error {
		c.Response().Header().Set("Content-Encoding", "identity")
		return c.String(http.StatusOK, "raw")
	})

	rec := get(r, "/pre", "gzip")
	if rec.Header().Get("Content-Encoding") != "identity" || rec.Body.String() != "raw" {
		t.Fatalf("expected untouched response, got %q %q", rec.Header().Get("Content-Encoding"), rec.Body.String())
	}
}

func TestMiddleware_NoBodyStatus(t *testing.T) {
	r := newRouter(DefaultConfig(), "/empty", func(c router.Context) error {
		c.Response().WriteHeader(http.StatusNoContent)
		return nil
	})

	rec := get(r, "/empty", "gzip")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "" || rec.Body.Len() != 0 {
		t.Fatal("expected no encoded body for 204")
	}
}

func TestMiddleware_PreservesErrorStatus(t *testing.T) {
	r := newRouter(DefaultConfig(), "/missing", func(c router.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found"})
	})

	rec := get(r, "/missing", "gzip")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip, got %q", rec.Header().Get("Content-Encoding"))
	}
}

func TestMiddleware_MinSizeAcrossMultipleWrites(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSize = 16

	small := newRouter(cfg, "/small", func(c router.Context) error {
		return c.String(http.StatusOK, "tiny")
	})
	if rec := get(small, "/small", "gzip"); rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != "tiny" {
		t.Fatalf("expected small body uncompressed, got %q %q", rec.Header().Get("Content-Encoding"), rec.Body.String())
	}

	chunked := newRouter(cfg, "/chunked", func(c router.Context) error {
		c.Response().Header().Set("Content-Type", "text/plain")
		for i := 0; i < 4; i++ {
			if _, err := c.Response().Write([]byte("0123456789")); err != nil {
				return err
			}
		}
		return nil
	})
	rec := get(chunked, "/chunked", "gzip")
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip once MinSize reached, got %q", rec.Header().Get("Content-Encoding"))
	}
	gz, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	decoded, _ := io.ReadAll(gz)
	if string(decoded) != strings.Repeat("0123456789", 4) {
		t.Fatalf("unexpected decoded body %q", decoded)
	}
}

func TestMiddleware_ExcludedPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcludedPathPrefixes = []string{"/metrics"}

	r := nethttp.NewRouter()
	r.Use(Middleware(cfg))
	r.GET("/metrics", func(c router.Context) error { return c.String(http.StatusOK, "m") })

	if rec := get(r, "/metrics", "gzip"); rec.Header().Get("Content-Encoding") != "" {
		t.Fatal("expected excluded path to skip compression")
	}
}

func TestMiddleware_RestoresResponseWriter(t *testing.T) {
	var inner router.ResponseWriter
	h := router.Chain(func(c router.Context) error {
		inner = c.Response()
		return c.String(http.StatusOK, "x")
	}, Middleware(DefaultConfig()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	c := router.NewContext(httptest.NewRecorder(), req)
	outer := c.Response()
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner == outer {
		t.Fatal("expected handler to see the compressing writer")
	}
	if c.Response() != outer {
		t.Fatal("expected original writer restored after the layer returns")
	}
}
