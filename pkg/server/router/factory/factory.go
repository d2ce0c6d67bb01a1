// Package factory builds the router adapter named by ROUTER_TYPE.
package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nimburion/devserver/pkg/config"
	"github.com/nimburion/devserver/pkg/server/router"
	ginadapter "github.com/nimburion/devserver/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/devserver/pkg/server/router/gorilla"
	nethttpadapter "github.com/nimburion/devserver/pkg/server/router/nethttp"
)

var constructors = map[string]func() router.Router{
	config.RouterNetHTTP: func() router.Router { return nethttpadapter.NewRouter() },
	config.RouterGin:     func() router.Router { return ginadapter.NewRouter() },
	config.RouterGorilla: func() router.Router { return gorillaadapter.NewRouter() },
}

// NewRouter returns a fresh router of routerType. Matching ignores case and
// surrounding space; an empty type selects the net/http adapter.
func NewRouter(routerType string) (router.Router, error) {
	key := strings.ToLower(strings.TrimSpace(routerType))
	if key == "" {
		key = config.RouterNetHTTP
	}
	build, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("unsupported router type %q (supported: %s)", routerType, strings.Join(SupportedTypes(), ", "))
	}
	return build(), nil
}

// SupportedTypes lists the accepted router types in sorted order.
func SupportedTypes() []string {
	types := make([]string, 0, len(constructors))
	for name := range constructors {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
