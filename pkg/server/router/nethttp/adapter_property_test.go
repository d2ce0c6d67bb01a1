package nethttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/devserver/pkg/server/router"
)

func genSegment() gopter.Gen {
	return gen.Identifier().Map(func(s string) string {
		if len(s) > 12 {
			return s[:12]
		}
		return s
	})
}

func record(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func TestProperty_TableThenFallback(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("registered paths hit the table, anything else reaches the fallback", prop.ForAll(
		func(registered, other string) bool {
			r := NewRouter()
			r.GET("/"+registered, func(c router.Context) error {
				return c.String(http.StatusOK, "table")
			})
			r.Fallback(func(c router.Context) error {
				return c.String(http.StatusTeapot, "fallback:"+c.Request().URL.Path)
			})

			hit := record(r, http.MethodGet, "/"+registered)
			if hit.Code != http.StatusOK || hit.Body.String() != "table" {
				return false
			}
			if other == registered {
				return true
			}
			miss := record(r, http.MethodGet, "/"+other)
			return miss.Code == http.StatusTeapot && miss.Body.String() == "fallback:/"+other
		},
		genSegment(),
		genSegment(),
	))

	properties.TestingRun(t)
}

func TestProperty_WrongMethodNeverFallsThrough(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a known path with another method is 405 with Allow", prop.ForAll(
		func(segment, registered, requested string) bool {
			if registered == requested {
				return true
			}
			r := NewRouter()
			handler := func(c router.Context) error { return c.String(http.StatusOK, "ok") }
			switch registered {
			case http.MethodGet:
				r.GET("/"+segment, handler)
			case http.MethodPost:
				r.POST("/"+segment, handler)
			case http.MethodPut:
				r.PUT("/"+segment, handler)
			case http.MethodDelete:
				r.DELETE("/"+segment, handler)
			}
			fallbackCalled := false
			r.Fallback(func(c router.Context) error {
				fallbackCalled = true
				return router.NotFound(c)
			})

			w := record(r, requested, "/"+segment)
			return !fallbackCalled &&
				w.Code == http.StatusMethodNotAllowed &&
				w.Header().Get("Allow") == registered
		},
		genSegment(),
		gen.OneConstOf(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete),
		gen.OneConstOf(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch),
	))

	properties.TestingRun(t)
}

func TestProperty_GroupMiddlewareWrapsInOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("router, group and route middleware run outermost first", prop.ForAll(
		func(prefix, path string, layers int) bool {
			var trail []string
			mark := func(name string) router.MiddlewareFunc {
				return func(next router.HandlerFunc) router.HandlerFunc {
					return func(c router.Context) error {
						trail = append(trail, name)
						return next(c)
					}
				}
			}

			r := NewRouter()
			r.Use(mark("root"))
			groupMW := make([]router.MiddlewareFunc, layers)
			want := []string{"root"}
			for i := range groupMW {
				name := "group" + string(rune('a'+i))
				groupMW[i] = mark(name)
				want = append(want, name)
			}
			want = append(want, "route", "handler")

			g := r.Group("/"+prefix, groupMW...)
			g.GET("/"+path, func(c router.Context) error {
				trail = append(trail, "handler")
				c.Response().WriteHeader(http.StatusNoContent)
				return nil
			}, mark("route"))

			w := record(r, http.MethodGet, "/"+prefix+"/"+path)
			return w.Code == http.StatusNoContent && strings.Join(trail, ",") == strings.Join(want, ",")
		},
		genSegment(),
		genSegment(),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
