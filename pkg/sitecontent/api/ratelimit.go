package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/render"
	"github.com/patrickmn/go-cache"
)

// RateLimiter counts requests per client IP in fixed windows. Counters expire
// with their window, so idle clients cost nothing.
type RateLimiter struct {
	window  time.Duration
	max     int
	message string

	mu       sync.Mutex
	counters *cache.Cache
	now      func() time.Time
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter allows max requests per window for each client
func NewRateLimiter(window time.Duration, max int, message string) *RateLimiter {
	return &RateLimiter{
		window:   window,
		max:      max,
		message:  message,
		counters: cache.New(window, 2*window),
		now:      time.Now,
	}
}

// take counts one request for key and reports what is left of the window
func (l *RateLimiter) take(key string) (remaining int, resetAt time.Time, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var counter *windowCounter
	if v, found := l.counters.Get(key); found {
		counter = v.(*windowCounter)
	}
	if counter == nil || !now.Before(counter.resetAt) {
		counter = &windowCounter{resetAt: now.Add(l.window)}
		l.counters.Set(key, counter, l.window)
	}

	counter.count++
	if counter.count > l.max {
		return 0, counter.resetAt, false
	}
	return l.max - counter.count, counter.resetAt, true
}

// Middleware rejects requests over the limit with 429 and sets the
// RateLimit-* headers on every response
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, resetAt, allowed := l.take(clientIP(r))
		resetIn := int(math.Ceil(resetAt.Sub(l.now()).Seconds()))
		if resetIn < 0 {
			resetIn = 0
		}

		h := w.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(resetIn))

		if !allowed {
			h.Set("Retry-After", strconv.Itoa(resetIn))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, ErrorResponse{Error: l.message})
			return
		}

		next.ServeHTTP(w, r)
	})
}
