package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// limiterEntry pairs a token bucket with the last time its IP was seen so
// idle entries can be evicted.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

func newIPLimiter(maxRequests int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		idle:    window * 2,
	}
}

// allow reports whether the IP may make another request right now.
func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Lazy eviction keeps the map bounded without a background goroutine.
	// The scan runs at most once per half idle period.
	if now.Sub(l.lastSweep) >= l.idle/2 {
		for key, e := range l.entries {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.entries, key)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimit returns middleware that allows maxRequests per IP per window
// (burst of maxRequests, refilled evenly over the window). Exceeding it
// yields 429.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	limiter := newIPLimiter(maxRequests, window)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.allow(c.RealIP(), time.Now()) {
				return echo.NewHTTPError(http.StatusTooManyRequests,
					"Too many attempts. Please wait a minute and try again.")
			}
			return next(c)
		}
	}
}
