// Package ratelimit provides the per-client token bucket admission check
// for the query server.
//
// Each client address gets its own bucket, created full on first sight.
// Capacity equals the refill rate, so a drained bucket refills completely
// in exactly one second. Buckets are never evicted; the map grows with the
// number of distinct addresses seen over the process lifetime.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// bucket is the token state for a single address.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// tryAcquire refills based on elapsed time and consumes one token if at
// least one is available. Caller must hold b.mu.
func (b *bucket) tryAcquire(capacity, refillPerSec float64) bool {
	b.refill(capacity, refillPerSec)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// refill adds elapsed*rate tokens, capped at capacity. Zero elapsed time
// is a no-op rather than an error; rapid successive calls can land on the
// same clock reading.
func (b *bucket) refill(capacity, refillPerSec float64) {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.lastRefill = now
	b.tokens += elapsed.Seconds() * refillPerSec
	if b.tokens > capacity {
		b.tokens = capacity
	}
}

// Limiter is a per-address token bucket rate limiter.
// It is safe for concurrent use.
type Limiter struct {
	capacity  float64
	buckets   map[string]*bucket
	mu        sync.RWMutex
	unlimited bool
}

// New creates a limiter allowing maxRequestsPerSecond requests per address.
// A rate of 0 (or negative) disables limiting entirely: Allow always
// returns true and no per-address state is allocated.
func New(maxRequestsPerSecond int) *Limiter {
	if maxRequestsPerSecond <= 0 {
		return &Limiter{
			capacity:  math.Inf(1),
			buckets:   make(map[string]*bucket),
			unlimited: true,
		}
	}
	return &Limiter{
		capacity: float64(maxRequestsPerSecond),
		buckets:  make(map[string]*bucket),
	}
}

// Allow reports whether a request from addr is admitted, consuming one
// token on success. A first-seen address gets a full bucket.
func (l *Limiter) Allow(addr string) bool {
	if l.unlimited {
		return true
	}

	l.mu.RLock()
	b := l.buckets[addr]
	l.mu.RUnlock()

	if b == nil {
		l.mu.Lock()
		// Double-check after acquiring the write lock.
		b = l.buckets[addr]
		if b == nil {
			b = &bucket{tokens: l.capacity, lastRefill: time.Now()}
			l.buckets[addr] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tryAcquire(l.capacity, l.capacity)
}

// Capacity returns the bucket capacity in tokens. It is +Inf when the
// limiter is unlimited.
func (l *Limiter) Capacity() float64 {
	return l.capacity
}

// TrackedAddrs returns the number of addresses with bucket state.
// It stays zero for an unlimited limiter.
func (l *Limiter) TrackedAddrs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
