package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// bucket tracks the token balance for a single client IP.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// take refills the bucket for the time elapsed since the last call, capped at
// burst, then tries to spend one token.
func (b *bucket) take(rate, burst float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.last).Seconds() * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// rateLimiter maps client IPs to token buckets.
type rateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

func newRateLimiter(rps int) *rateLimiter {
	// Burst of at least 10 so page loads firing several requests at once do
	// not trip the limiter.
	burst := float64(rps)
	if burst < 10 {
		burst = 10
	}
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(rps),
		burst:   burst,
	}
}

func (rl *rateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.buckets[key]; !ok {
		b = &bucket{tokens: rl.burst, last: time.Now()}
		rl.buckets[key] = b
	}
	return b
}

// evictStale drops buckets idle longer than the cutoff so the map cannot grow
// without bound.
func (rl *rateLimiter) evictStale(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		b.mu.Lock()
		stale := b.last.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(rl.buckets, ip)
		}
	}
}

// RateLimitMiddleware enforces a per-IP token bucket of rps requests per
// second, answering 429 when a client runs dry. A background sweep evicts
// buckets idle for ten minutes.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	rl := newRateLimiter(rps)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.evictStale(10 * time.Minute)
		}
	}()

	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).take(rl.rate, rl.burst) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests — please slow down",
			})
			return
		}
		c.Next()
	}
}
