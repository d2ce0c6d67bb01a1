// Package cors answers preflight requests and decorates cross-origin responses.
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/devserver/pkg/server/router"
)

// Config configures CORS middleware behavior.
// AllowAllOrigins and AllowCredentials are mutually exclusive; credentials are dropped.
type Config struct {
	Enabled bool

	AllowAllOrigins bool
	AllowOrigins    []string
	// AllowWildcard enables single-"*" patterns such as https://*.example.com in AllowOrigins.
	AllowWildcard bool

	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration

	OptionsResponseStatusCode int
}

// DefaultConfig returns a disabled configuration with conservative values.
func DefaultConfig() Config {
	return Config{
		AllowMethods:              []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusNoContent,
	}
}

// Permissive allows any origin, any method and any requested header.
func Permissive() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.AllowAllOrigins = true
	return cfg
}

// Middleware returns a router middleware implementing CORS.
// Preflight requests are answered here and never reach the inner handler.
func Middleware(cfg Config) router.MiddlewareFunc {
	cfg = normalize(cfg)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !cfg.Enabled {
				return next(c)
			}

			req := c.Request()
			h := c.Response().Header()
			origin := req.Header.Get("Origin")
			if origin == "" {
				return next(c)
			}

			if !cfg.originAllowed(origin) {
				if isPreflight(req) {
					c.Response().WriteHeader(http.StatusForbidden)
					return nil
				}
				return next(c)
			}

			appendVary(h, "Origin", "Access-Control-Request-Method", "Access-Control-Request-Headers")
			cfg.setOriginHeaders(h, origin)
			if len(cfg.ExposeHeaders) > 0 {
				h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
			}

			if !isPreflight(req) {
				return next(c)
			}

			h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
			if len(cfg.AllowHeaders) > 0 {
				h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
			} else if requested := req.Header.Get("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", requested)
			}
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge/time.Second)))
			}
			c.Response().WriteHeader(cfg.OptionsResponseStatusCode)
			return nil
		}
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = def.AllowMethods
	}
	if cfg.OptionsResponseStatusCode == 0 {
		cfg.OptionsResponseStatusCode = def.OptionsResponseStatusCode
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	cfg.AllowMethods = trimAll(cfg.AllowMethods, strings.ToUpper)
	cfg.AllowOrigins = trimAll(cfg.AllowOrigins, nil)
	cfg.AllowHeaders = trimAll(cfg.AllowHeaders, nil)
	cfg.ExposeHeaders = trimAll(cfg.ExposeHeaders, nil)

	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if cfg.AllowAllOrigins {
		cfg.AllowCredentials = false
	}
	return cfg
}

func trimAll(values []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if transform != nil {
			v = transform(v)
		}
		out = append(out, v)
	}
	return out
}

func isPreflight(req *http.Request) bool {
	return req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != ""
}

func (cfg Config) originAllowed(origin string) bool {
	if cfg.AllowAllOrigins {
		return true
	}
	for _, allowed := range cfg.AllowOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
		if cfg.AllowWildcard && wildcardMatch(allowed, origin) {
			return true
		}
	}
	return false
}

func wildcardMatch(pattern, value string) bool {
	if strings.Count(pattern, "*") != 1 {
		return false
	}
	prefix, suffix, _ := strings.Cut(pattern, "*")
	return len(value) >= len(prefix)+len(suffix) && strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix)
}

func (cfg Config) setOriginHeaders(h http.Header, origin string) {
	switch {
	case cfg.AllowCredentials:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	case cfg.AllowAllOrigins:
		h.Set("Access-Control-Allow-Origin", "*")
	default:
		h.Set("Access-Control-Allow-Origin", origin)
	}
}

func appendVary(h http.Header, values ...string) {
	for _, value := range values {
		current := h.Get("Vary")
		if current == "" {
			h.Set("Vary", value)
			continue
		}
		present := false
		for _, part := range strings.Split(current, ",") {
			if strings.EqualFold(strings.TrimSpace(part), value) {
				present = true
				break
			}
		}
		if !present {
			h.Set("Vary", current+", "+value)
		}
	}
}
