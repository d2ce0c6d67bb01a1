// Package ratelimit throttles API requests per client with a token bucket.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/server/router"
)

// RateLimiter decides whether a request identified by key may proceed.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter keeps one token bucket per key. A client may burst up to
// burst requests and then sustains requestsPerSecond on average.
type TokenBucketLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter creates a limiter allowing requestsPerSecond with the given burst.
//
//	limiter := NewTokenBucketLimiter(10, 20)
//	limiter.Allow("10.0.0.1") // true for the first 20 calls in quick succession
func NewTokenBucketLimiter(requestsPerSecond int, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

// Allow consumes one token from key's bucket.
func (l *TokenBucketLimiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// getLimiter returns key's bucket, creating it on first use. LoadOrStore keeps
// concurrent first requests from the same client on a single bucket.
func (l *TokenBucketLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return limiter.(*rate.Limiter)
}

// retryAfter is the whole number of seconds until one token is refilled.
func (l *TokenBucketLimiter) retryAfter() int {
	if l.rate <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(l.rate))))
}

// Config configures the RateLimit middleware.
type Config struct {
	// KeyFunc extracts the client key. Defaults to ClientIP without forwarded headers.
	KeyFunc func(router.Context) string
	// RetryAfter is written to the Retry-After header in seconds. Defaults to 1.
	RetryAfter int
}

// RateLimit rejects requests over the limiter's budget with a 429 error that the
// router's error handler renders in the standard error body.
func RateLimit(limiter RateLimiter, cfg Config) router.MiddlewareFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c router.Context) string { return ClientIP(c.Request(), false) }
	}
	retryAfter := cfg.RetryAfter
	if retryAfter <= 0 {
		retryAfter = 1
		if tb, ok := limiter.(*TokenBucketLimiter); ok {
			retryAfter = tb.retryAfter()
		}
	}
	retryHeader := strconv.Itoa(retryAfter)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if limiter.Allow(keyFunc(c)) {
				return next(c)
			}
			c.Response().Header().Set("Retry-After", retryHeader)
			return controller.NewAppError(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
		}
	}
}

// ClientIP returns the address a request originated from. With trustForwarded
// set, the first X-Forwarded-For entry or X-Real-IP wins over RemoteAddr.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
