package recovery

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/devserver/pkg/middleware/requestid"
	"github.com/nimburion/devserver/pkg/middleware/testutil"
	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/server/router/nethttp"
)

func TestRecovery_CatchesPanic(t *testing.T) {
	log := testutil.NewMockLogger()
	r := nethttp.NewRouter()
	r.Use(requestid.RequestID(), Recovery(log))
	r.GET("/panic", func(c router.Context) error {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["error"] != "internal_server_error" {
		t.Errorf("expected error 'internal_server_error', got %v", response["error"])
	}
	if response["message"] != "an unexpected error occurred" {
		t.Errorf("unexpected message %v", response["message"])
	}
	headerID := w.Header().Get(requestid.RequestIDHeader)
	if headerID == "" || response["request_id"] != headerID {
		t.Errorf("request_id %v does not match header %q", response["request_id"], headerID)
	}

	entries := log.Find("panic recovered")
	if len(entries) != 1 {
		t.Fatalf("expected one panic log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "error" {
		t.Errorf("expected error level, got %s", entry.Level)
	}
	if entry.Fields["panic"] != "something went wrong" {
		t.Errorf("expected panic value, got %v", entry.Fields["panic"])
	}
	if entry.Fields["request_id"] != headerID {
		t.Errorf("expected request_id %q in log, got %v", headerID, entry.Fields["request_id"])
	}
	if stack, _ := entry.Fields["stack"].(string); !strings.Contains(stack, "panic") {
		t.Error("expected stack trace in log")
	}
}

func TestRecovery_PassesThroughWithoutPanic(t *testing.T) {
	log := testutil.NewMockLogger()
	r := nethttp.NewRouter()
	r.Use(Recovery(log))
	r.GET("/ok", func(c router.Context) error {
		return c.String(http.StatusOK, "fine")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
	if len(log.Entries()) != 0 {
		t.Errorf("expected no log entries, got %d", len(log.Entries()))
	}
}

func TestRecovery_PropagatesErrors(t *testing.T) {
	want := errors.New("boom")
	handler := router.Chain(func(c router.Context) error { return want }, Recovery(testutil.NewMockLogger()))

	c := router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err := handler(c); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestRecovery_ResponseAlreadyWritten(t *testing.T) {
	r := nethttp.NewRouter()
	r.Use(Recovery(testutil.NewMockLogger()))
	r.GET("/partial", func(c router.Context) error {
		_ = c.String(http.StatusAccepted, "partial")
		panic("after write")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partial", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("expected original status 202, got %d", w.Code)
	}
	if w.Body.String() != "partial" {
		t.Errorf("expected body untouched, got %q", w.Body.String())
	}
}

func TestRecovery_ReraisesAbortHandler(t *testing.T) {
	handler := router.Chain(func(c router.Context) error {
		panic(http.ErrAbortHandler)
	}, Recovery(testutil.NewMockLogger()))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	_ = handler(router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestProperty_PanicRecovery(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genPanicValue := gen.OneGenOf(
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.Int(),
	)

	properties.Property("any panic becomes a 500 with a request id and the router keeps serving", prop.ForAll(
		func(value interface{}) bool {
			r := nethttp.NewRouter()
			r.Use(requestid.RequestID(), Recovery(testutil.NewMockLogger()))
			r.GET("/panic", func(c router.Context) error { panic(value) })
			r.GET("/ok", func(c router.Context) error { return c.String(http.StatusOK, "ok") })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
			if w.Code != http.StatusInternalServerError || w.Header().Get(requestid.RequestIDHeader) == "" {
				return false
			}

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
			return w.Code == http.StatusOK
		},
		genPanicValue,
	))

	properties.TestingRun(t)
}
