package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/wealthwizard/finance-api/internal/ctxkeys"
)

const rateLimitMessage = "Too many requests. Please try again later."

// RateLimiter is a sliding-window counter keyed by client (IP or user id)
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}

	go rl.sweepLoop()

	return rl
}

// Allow records a hit for key and reports whether it is within the limit.
// Rejected hits are not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	live := rl.live(key, now)
	if len(live) >= rl.limit {
		rl.hits[key] = live
		return false
	}

	rl.hits[key] = append(live, now)
	return true
}

func (rl *RateLimiter) live(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	return lo.Filter(rl.hits[key], func(at time.Time, _ int) bool {
		return at.After(cutoff)
	})
}

func (rl *RateLimiter) retryAfter() string {
	return strconv.Itoa(int(rl.window.Seconds()))
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.sweep()
	}
}

// sweep forgets clients idle for two windows
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-2 * rl.window)
	for key, hits := range rl.hits {
		if !lo.ContainsBy(hits, func(at time.Time) bool { return at.After(cutoff) }) {
			delete(rl.hits, key)
		}
	}
}

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(r *http.Request) string

// ByIP counts requests per client address
func ByIP(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// ByUser counts requests per signed-in user, falling back to the client
// address for anonymous requests.
func ByUser(r *http.Request) string {
	if user := ctxkeys.User(r.Context()); user != nil {
		return "user:" + user.ID
	}
	return ByIP(r)
}

// RateLimit guards a single route
func RateLimit(limiter *RateLimiter, key KeyFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(key(r)) {
				rejectRateLimited(w, r, limiter)
				return
			}
			next(w, r)
		}
	}
}

// RateLimitAuth allows 5 login or register attempts per 15 minutes per IP
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(NewRateLimiter(5, 15*time.Minute), ByIP)
}

// RateLimitChat allows 30 assistant questions per hour per user
func RateLimitChat() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(NewRateLimiter(30, time.Hour), ByUser)
}

// APIRateLimit applies limiter to every /api request except the health check.
// It sits in the global chain.
func APIRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/health" {
				if !limiter.Allow(ByIP(r)) {
					rejectRateLimited(w, r, limiter)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, limiter *RateLimiter) {
	slog.Warn("rate limit exceeded", "ip", getClientIP(r), "path", r.URL.Path)
	w.Header().Set("Retry-After", limiter.retryAfter())
	writeJSONError(w, http.StatusTooManyRequests, rateLimitMessage)
}

// getClientIP prefers proxy headers over the socket address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
