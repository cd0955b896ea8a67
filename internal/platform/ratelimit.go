package platform

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type rateLimitBucket struct {
	remaining int
	limit     int
	resetAt   time.Time
}

// RateLimitMonitor mirrors the platform's per-route rate limit headers so
// the ban executor can fail fast instead of burning a blocked request.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*rateLimitBucket
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{buckets: make(map[string]*rateLimitBucket)}
}

func (m *RateLimitMonitor) CanExecute(route, scopeID string) bool {
	m.mu.RLock()
	bucket, ok := m.buckets[route+":"+scopeID]
	m.mu.RUnlock()

	if !ok || time.Now().After(bucket.resetAt) {
		return true
	}
	return bucket.remaining > 0
}

func (m *RateLimitMonitor) UpdateFromResponse(resp *fasthttp.Response, route, scopeID string) {
	bucket := &rateLimitBucket{}
	if v := string(resp.Header.Peek("X-RateLimit-Remaining")); v != "" {
		bucket.remaining, _ = strconv.Atoi(v)
	}
	if v := string(resp.Header.Peek("X-RateLimit-Limit")); v != "" {
		bucket.limit, _ = strconv.Atoi(v)
	}
	if v := string(resp.Header.Peek("X-RateLimit-Reset")); v != "" {
		resetUnix, _ := strconv.ParseFloat(v, 64)
		bucket.resetAt = time.Unix(int64(resetUnix), 0)
	}

	m.mu.Lock()
	m.buckets[route+":"+scopeID] = bucket
	m.mu.Unlock()
}
