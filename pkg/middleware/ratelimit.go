/**
 * @description
 * Rate limiting middleware for the HTTP API. Uses a per-client in-memory
 * token bucket keyed by client IP. Buckets refill continuously over the
 * configured window and idle buckets are evicted to bound memory.
 *
 * @dependencies
 * - sync: For thread-safe bucket access.
 * - time: For time-based refill accounting.
 * - net/http: For the HTTP middleware contract.
 */
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter tracks a token bucket per client key.
type RateLimiter struct {
	buckets  map[string]*tokenBucket
	mutex    sync.Mutex
	capacity int
	refill   time.Duration
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter builds a limiter allowing `capacity` requests per `window`
// for each client. Tokens refill continuously rather than at window edges.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	rl := &RateLimiter{
		buckets:  make(map[string]*tokenBucket),
		capacity: capacity,
		refill:   window / time.Duration(capacity),
	}
	go rl.evictIdle()
	return rl
}

// Allow reports whether a request from the given key should proceed, and
// returns the number of tokens remaining for the key.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: rl.capacity, lastRefill: now}
		rl.buckets[key] = bucket
	}

	if added := int(now.Sub(bucket.lastRefill) / rl.refill); added > 0 {
		bucket.tokens += added
		if bucket.tokens > rl.capacity {
			bucket.tokens = rl.capacity
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true, bucket.tokens
	}
	return false, 0
}

// evictIdle drops buckets untouched for several refill windows.
func (rl *RateLimiter) evictIdle() {
	interval := rl.refill * time.Duration(rl.capacity) * 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-interval)
		rl.mutex.Lock()
		for key, bucket := range rl.buckets {
			if bucket.lastRefill.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mutex.Unlock()
	}
}

// RateLimit wraps handlers with per-client-IP rate limiting.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining := limiter.Allow(clientIP(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the originating client IP from the request.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// May contain a chain of proxies; the first entry is the client.
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndexByte(ip, ':'); idx >= 0 {
		return ip[:idx]
	}
	return ip
}
