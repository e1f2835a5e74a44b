package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window request limit in Redis, keyed by client
// IP and, once authenticated, by user id as well.
type RateLimiter struct {
	cache  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(cache *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{cache: cache, limit: int64(limit), window: window}
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ratelimit:" + clientIP(r)
		if userID, ok := r.Context().Value(ctxUserIDKey).(uuid.UUID); ok && userID != uuid.Nil {
			key += ":" + userID.String()
		}

		pipe := rl.cache.TxPipeline()
		incr := pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, rl.window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			// Fail open; the limiter must not take the service down with Redis.
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > rl.limit {
			jsonError(w, http.StatusTooManyRequests, "Rate limit exceeded")
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
