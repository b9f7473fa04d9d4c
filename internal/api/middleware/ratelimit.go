package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/devfedhq/devboard/internal/api/response"
	"github.com/devfedhq/devboard/internal/cache"
)

const defaultGuestTasksPerMinute = 5

// GuestRateLimit limits task runs for unauthenticated callers, counted per
// client IP over a one-minute window in Redis. Authenticated users are not
// limited here.
type GuestRateLimit struct {
	cache       cache.Cache
	tasksPerMin int
}

// NewGuestRateLimit creates a new GuestRateLimit middleware.
func NewGuestRateLimit(c cache.Cache, tasksPerMin int) *GuestRateLimit {
	if tasksPerMin <= 0 {
		tasksPerMin = defaultGuestTasksPerMinute
	}
	return &GuestRateLimit{cache: c, tasksPerMin: tasksPerMin}
}

// Limit applies the guest rate limit.
func (rl *GuestRateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetClaims(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.GuestRateLimitKey(clientIP(r))
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.tasksPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.tasksPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.tasksPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Guest task limit reached, try again shortly", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
