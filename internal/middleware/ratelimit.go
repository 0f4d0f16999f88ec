package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig is a fixed window limit: RequestsPerWindow per
// WindowDuration, both > 0.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate rejects non-positive values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultSearchLimit applies to routes that encode a query and rank the
// catalog: 10 requests per minute.
func DefaultSearchLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
}

// DefaultGlobalLimit applies to every other API route: 60 requests per minute.
func DefaultGlobalLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute}
}

// RateLimitStore holds fixed window counters.
type RateLimitStore interface {
	// Allow counts one request for key. remaining is the quota left in the
	// current window; retryAfter is the number of seconds until it resets
	// and is only meaningful when allowed is false.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore keeps counters in process. Safe for concurrent use.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates an empty store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		s.buckets[key] = &bucket{count: 1, windowEnd: now.Add(config.WindowDuration)}
		return true, config.RequestsPerWindow - 1, 0
	}
	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}
	return false, 0, secondsUntil(b.windowEnd.Sub(now))
}

// Cleanup drops expired buckets. Call it periodically, every few windows.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, b := range s.buckets {
		if !now.Before(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// RedisRateLimitStore shares counters between API replicas using INCR and
// PEXPIRE. When Redis fails the request is allowed.
type RedisRateLimitStore struct {
	client  redis.Cmdable
	prefix  string
	metrics *Metrics
}

// NewRedisRateLimitStore creates a store over client.
func NewRedisRateLimitStore(client redis.Cmdable) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: "similarhub:ratelimit:"}
}

// WithMetrics counts fail-open events on m.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := s.prefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		s.failOpen()
		return true, config.RequestsPerWindow, 0
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			s.failOpen()
			return true, config.RequestsPerWindow - 1, 0
		}
	}

	if int(count) <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - int(count), 0
	}

	ttl, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// A key without expiry would block forever; restore the window.
		if ttl == -1 {
			s.client.PExpire(ctx, redisKey, config.WindowDuration)
		}
		ttl = config.WindowDuration
	}
	return false, 0, secondsUntil(ttl)
}

func (s *RedisRateLimitStore) failOpen() {
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
}

// secondsUntil rounds d up to whole seconds, at least 1.
func secondsUntil(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// KeyFunc extracts a rate limit key from a request. Keys are "<type>:<value>".
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client IP, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		return "ip:" + clientIP(r)
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// keyType returns the "<type>" part of a KeyFunc key.
func keyType(key string) string {
	if idx := strings.Index(key, ":"); idx > 0 {
		return key[:idx]
	}
	return "unknown"
}

// RateLimiter rejects requests over config with 429 and a JSON error
// envelope. The key is scoped per route so separate limits on separate
// routes do not share a counter. metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := normalizePath(r.URL.Path)
			key := keyFunc(r)
			if metrics != nil {
				metrics.IncRateLimitRequests(route, keyType(key))
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), route+"|"+key, config)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(route, keyType(key))
				}
				SetErrorCode(r.Context(), "rate_limit_exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				// X-RateLimit-Reset is a Unix timestamp.
				resetTime := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "rate_limit_exceeded",
						"message": "Too many requests, retry after " + strconv.Itoa(retryAfter) + "s",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
