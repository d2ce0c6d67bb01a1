package requestsize

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/middleware/testutil"
	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/server/router/nethttp"
)

func newRouter(limit int64) *nethttp.NetHTTPRouter {
	r := nethttp.NewRouter()
	r.SetErrorHandler(controller.ErrorHandler(testutil.NewMockLogger()))
	r.Use(Middleware(limit))
	r.POST("/items", func(c router.Context) error {
		var payload map[string]interface{}
		if err := c.Bind(&payload); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func TestMiddleware_AllowsRequestWithinLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":"ok"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(64).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMiddleware_RejectsDeclaredContentLength(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 128)
	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(64).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", w.Code)
	}
	var resp controller.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "request_too_large" {
		t.Errorf("error code = %q", resp.Error)
	}
}

func TestMiddleware_RejectsStreamedBody(t *testing.T) {
	payload := `{"name":"` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/items", io.NopCloser(strings.NewReader(payload)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(64).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", w.Code)
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	payload := `{"name":"` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(0).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestDefaultMaxBytes(t *testing.T) {
	if DefaultMaxBytes != 2*1024*1024 {
		t.Errorf("DefaultMaxBytes = %d", DefaultMaxBytes)
	}
}
