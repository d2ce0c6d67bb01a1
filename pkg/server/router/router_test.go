package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/devserver/pkg/server/router"
	ginadapter "github.com/nimburion/devserver/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/devserver/pkg/server/router/gorilla"
	nethttpadapter "github.com/nimburion/devserver/pkg/server/router/nethttp"
)

func TestRouterImplementations_ConformToInterface(t *testing.T) {
	var _ router.Router = nethttpadapter.NewRouter()
	var _ router.Router = ginadapter.NewRouter()
	var _ router.Router = gorillaadapter.NewRouter()
}

func TestChain_FirstIsOutermost(t *testing.T) {
	var order []string
	layer := func(name string) router.MiddlewareFunc {
		return func(next router.HandlerFunc) router.HandlerFunc {
			return func(c router.Context) error {
				order = append(order, name+">")
				err := next(c)
				order = append(order, "<"+name)
				return err
			}
		}
	}

	h := router.Chain(func(c router.Context) error {
		order = append(order, "handler")
		return nil
	}, layer("a"), layer("b"), layer("c"))

	c := router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"a>", "b>", "c>", "handler", "<c", "<b", "<a"}
	if len(order) != len(expected) {
		t.Fatalf("unexpected order %v", order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("unexpected order %v", order)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	called := false
	h := router.Chain(func(c router.Context) error {
		called = true
		return nil
	})
	_ = h(router.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
	if !called {
		t.Fatal("expected handler to run without middleware")
	}
}

func TestWrapResponseWriter_ReusesTracker(t *testing.T) {
	rec := httptest.NewRecorder()
	outer := router.WrapResponseWriter(rec)
	inner := router.WrapResponseWriter(outer)
	if inner != outer {
		t.Fatal("expected an existing tracker to be reused")
	}

	inner.WriteHeader(http.StatusAccepted)
	if !outer.Written() || outer.Status() != http.StatusAccepted {
		t.Fatalf("expected shared state, got written=%v status=%d", outer.Written(), outer.Status())
	}
}

func TestMethodNotAllowed_DeduplicatesAllow(t *testing.T) {
	rec := httptest.NewRecorder()
	c := router.NewContext(rec, httptest.NewRequest(http.MethodPut, "/x", nil))

	if err := router.MethodNotAllowed(c, []string{http.MethodGet, http.MethodPost, http.MethodGet}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Fatalf("expected Allow %q, got %q", "GET, POST", got)
	}
}

func TestRouteTable_Allowed(t *testing.T) {
	table := router.NewRouteTable()
	table.Add(http.MethodGet, "/api/items")
	table.Add(http.MethodPost, "/api/items")
	table.Add(http.MethodGet, "/users/:id")

	if got := table.Allowed("/api/items"); len(got) != 2 || got[0] != http.MethodGet || got[1] != http.MethodPost {
		t.Fatalf("unexpected methods %v", got)
	}
	if got := table.Allowed("/users/7"); len(got) != 1 || got[0] != http.MethodGet {
		t.Fatalf("unexpected methods %v", got)
	}
	if got := table.Allowed("/nope"); len(got) != 0 {
		t.Fatalf("expected no methods, got %v", got)
	}
}

func TestMatchPath_ExactSegments(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
		id            string
	}{
		{"/api/items", "/api/items", true, ""},
		{"/api/items", "/api/items/", false, ""},
		{"/api/items", "//api/items", false, ""},
		{"/api/items", "/api/items//", false, ""},
		{"/api/items", "/api//items", false, ""},
		{"/users/:id", "/users/7", true, "7"},
		{"/users/:id", "/users/", false, ""},
		{"/users/:id", "/users/7/", false, ""},
		{"/", "/", true, ""},
		{"/", "", false, ""},
	}
	for _, tt := range tests {
		params, ok := router.MatchPath(tt.pattern, tt.path)
		if ok != tt.want {
			t.Errorf("MatchPath(%q, %q) = %v, want %v", tt.pattern, tt.path, ok, tt.want)
			continue
		}
		if ok && params["id"] != tt.id {
			t.Errorf("MatchPath(%q, %q) id = %q, want %q", tt.pattern, tt.path, params["id"], tt.id)
		}
	}
}
