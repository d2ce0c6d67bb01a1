package factory

import (
	"strings"
	"testing"

	"github.com/nimburion/devserver/pkg/config"
	"github.com/nimburion/devserver/pkg/server/router"
	ginadapter "github.com/nimburion/devserver/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/devserver/pkg/server/router/gorilla"
	nethttpadapter "github.com/nimburion/devserver/pkg/server/router/nethttp"
)

func TestNewRouter(t *testing.T) {
	tests := []struct {
		routerType string
		check      func(router.Router) bool
	}{
		{config.RouterNetHTTP, func(r router.Router) bool { _, ok := r.(*nethttpadapter.NetHTTPRouter); return ok }},
		{"", func(r router.Router) bool { _, ok := r.(*nethttpadapter.NetHTTPRouter); return ok }},
		{" Gorilla ", func(r router.Router) bool { _, ok := r.(*gorillaadapter.GorillaRouter); return ok }},
		{config.RouterGin, func(r router.Router) bool { _, ok := r.(*ginadapter.GinRouter); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.routerType, func(t *testing.T) {
			r, err := NewRouter(tt.routerType)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(r) {
				t.Errorf("NewRouter(%q) returned %T", tt.routerType, r)
			}
		})
	}
}

func TestNewRouter_ReturnsIndependentRouters(t *testing.T) {
	a, _ := NewRouter(config.RouterNetHTTP)
	b, _ := NewRouter(config.RouterNetHTTP)
	if a == b {
		t.Fatal("each call must build a new router")
	}
}

func TestNewRouter_UnsupportedType(t *testing.T) {
	_, err := NewRouter("chi")
	if err == nil {
		t.Fatal("expected error for chi")
	}
	if !strings.Contains(err.Error(), strings.Join(SupportedTypes(), ", ")) {
		t.Errorf("error should list supported types, got %q", err)
	}
}

func TestSupportedTypes_Sorted(t *testing.T) {
	got := strings.Join(SupportedTypes(), ",")
	if got != "gin,gorilla,nethttp" {
		t.Errorf("SupportedTypes() = %s", got)
	}
}
