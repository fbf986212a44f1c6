// Package middleware provides HTTP middleware for the admin API.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket. Invalidation and warming
// endpoints are cheap to call but expensive for the cache, so abusive
// clients are throttled before reaching the services.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	limit  rate.Limit
	burst  int
}

// NewRateLimiter creates a limiter allowing requestsPerSecond sustained with
// the given burst per client.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limits: make(map[string]*rate.Limiter),
		limit:  rate.Limit(requestsPerSecond),
		burst:  burst,
	}
}

// pruneThreshold caps the client map: once reached, limiters idle long
// enough to be full again are dropped before a new client is admitted.
const pruneThreshold = 1024

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	if len(rl.limits) >= pruneThreshold {
		rl.pruneLocked()
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// pruneLocked drops limiters whose bucket has refilled completely, bounding
// memory on long-running servers. Must be called with the lock held.
func (rl *RateLimiter) pruneLocked() {
	now := time.Now()
	for key, limiter := range rl.limits {
		if limiter.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limits, key)
		}
	}
}

// Allow reports whether a request from the client is within its budget.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware rejects over-budget requests with 429, keyed by client IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"message": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

