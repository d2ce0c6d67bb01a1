package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	obsmetrics "github.com/nimburion/devserver/pkg/observability/metrics"
	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/server/router/nethttp"
)

func scrape(t *testing.T, reg *obsmetrics.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMetrics_RecordsRequests(t *testing.T) {
	reg := obsmetrics.NewRegistry(obsmetrics.BuildInfo{})
	r := nethttp.NewRouter()
	r.Use(Metrics(reg.HTTP()))
	r.GET("/api/items", func(c router.Context) error {
		return c.String(http.StatusOK, "[]")
	})
	r.POST("/api/items", func(c router.Context) error {
		return c.String(http.StatusCreated, "{}")
	})

	for _, method := range []string{http.MethodGet, http.MethodGet, http.MethodPost} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, "/api/items", nil))
	}

	out := scrape(t, reg)
	for _, want := range []string{
		`http_requests_total{method="GET",path="/api/items",status="200"} 2`,
		`http_requests_total{method="POST",path="/api/items",status="201"} 1`,
		`http_request_duration_seconds_count{method="GET",path="/api/items",status="200"} 2`,
		`http_requests_in_flight 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output", want)
		}
	}
}

func TestMetrics_StaticPathsShareLabel(t *testing.T) {
	reg := obsmetrics.NewRegistry(obsmetrics.BuildInfo{})
	handler := router.Chain(func(c router.Context) error {
		return c.String(http.StatusNotFound, "not found")
	}, Metrics(reg.HTTP()))

	for _, path := range []string{"/a.css", "/img/b.png", "/missing"} {
		c := router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		_ = handler(c)
	}

	out := scrape(t, reg)
	if !strings.Contains(out, `http_requests_total{method="GET",path="/*static",status="404"} 3`) {
		t.Errorf("expected static paths to share a label, got:\n%s", out)
	}
}

func TestMetrics_PropagatesError(t *testing.T) {
	reg := obsmetrics.NewRegistry(obsmetrics.BuildInfo{})
	want := errors.New("test error")
	handler := router.Chain(func(c router.Context) error { return want }, Metrics(reg.HTTP()))

	c := router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))
	if err := handler(c); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
	if !strings.Contains(scrape(t, reg), `path="/api/x"`) {
		t.Error("failed request should still be recorded")
	}
}

func TestMetrics_InFlightDuringRequest(t *testing.T) {
	reg := obsmetrics.NewRegistry(obsmetrics.BuildInfo{})
	var during string
	handler := router.Chain(func(c router.Context) error {
		during = scrape(t, reg)
		return nil
	}, Metrics(reg.HTTP()))

	_ = handler(router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil)))

	if !strings.Contains(during, "http_requests_in_flight 1") {
		t.Error("expected one in-flight request while the handler runs")
	}
	if !strings.Contains(scrape(t, reg), "http_requests_in_flight 0") {
		t.Error("expected in-flight gauge back to 0")
	}
}
