package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/ratelimit"
)

// Clock returns the current time. Tests substitute a fake to move the window.
type Clock func() time.Time

// RateLimiter is the admission control port shared by the in-memory and Redis backends
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) ratelimit.Result
	CurrentCount(ctx context.Context, key string, window time.Duration) int
}

type rateBucket struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// purge drops timestamps at or before windowStart. Caller holds b.mu.
func (b *rateBucket) purge(windowStart time.Time) {
	i := 0
	for i < len(b.timestamps) && !b.timestamps[i].After(windowStart) {
		i++
	}
	if i > 0 {
		b.timestamps = append(b.timestamps[:0], b.timestamps[i:]...)
	}
}

// MemoryRateLimiter is a sliding-window limiter over exact request timestamps.
// Buckets are looked up under a map lock and mutated under their own mutex, so
// distinct keys never contend on the same bucket.
type MemoryRateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*rateBucket
	now     Clock
}

// NewMemoryRateLimiter creates a limiter. A nil clock uses time.Now.
func NewMemoryRateLimiter(clock Clock) *MemoryRateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     clock,
	}
}

func (l *MemoryRateLimiter) bucket(key string) *rateBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; !ok {
		b = &rateBucket{}
		l.buckets[key] = b
	}
	return b
}

// CheckAndIncrement admits the request when fewer than limit requests were
// recorded in the trailing window, recording it on success.
func (l *MemoryRateLimiter) CheckAndIncrement(_ context.Context, key string, limit int, window time.Duration) ratelimit.Result {
	now := l.now()
	resetAt := now.Unix() + int64(window/time.Second)

	b := l.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.purge(now.Add(-window))
	count := len(b.timestamps)

	if count >= limit {
		return ratelimit.Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	b.timestamps = append(b.timestamps, now)
	return ratelimit.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count - 1,
		ResetAt:   resetAt,
	}
}

// CurrentCount returns the number of requests inside the window without recording one
func (l *MemoryRateLimiter) CurrentCount(_ context.Context, key string, window time.Duration) int {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if !ok {
		return 0
	}

	windowStart := l.now().Add(-window)
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, ts := range b.timestamps {
		if ts.After(windowStart) {
			count++
		}
	}
	return count
}

// Clear drops all state
func (l *MemoryRateLimiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*rateBucket)
}

// RateLimitPolicy maps "<METHOD> <normalized path>" to a limit per window
type RateLimitPolicy struct {
	Window       time.Duration
	DefaultLimit int
	Limits       map[string]int
}

// DefaultRateLimitPolicy returns the per-route limits applied to the HTTP API
func DefaultRateLimitPolicy(window time.Duration, defaultLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		Window:       window,
		DefaultLimit: defaultLimit,
		Limits: map[string]int{
			"POST /api/sessions":       30,
			"GET /api/sessions/*":      120,
			"POST /api/sessions/*/end": 30,
			"POST /api/features":       600,
		},
	}
}

// LimitFor returns the limit configured for the route, or the default
func (p RateLimitPolicy) LimitFor(route string) int {
	if limit, ok := p.Limits[route]; ok {
		return limit
	}
	return p.DefaultLimit
}

// NormalizeRoute replaces path parameters (":id" or "*rest") with a single
// wildcard so every session id maps onto the same limit key.
func NormalizeRoute(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			segments[i] = "*"
		}
	}
	return strings.Join(segments, "/")
}

// RateLimitKey builds the limiter key for a user and route
func RateLimitKey(userID, method, route string) string {
	return userID + ":" + method + " " + route
}
