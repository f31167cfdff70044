package network

import (
	"sync"
	"time"
)

// Limiter is a per-key token bucket. Each key may spend max tokens per
// window; tokens refill in proportion to elapsed time.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewLimiter allows max events per window for each key. max <= 0 disables
// limiting.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow spends one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if l.max <= 0 || l.window <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > 2*l.window {
		l.prune(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.max, lastRefill: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 && b.tokens < l.max {
		refill := int(float64(l.max) * float64(elapsed) / float64(l.window))
		if refill > 0 {
			b.tokens = min(b.tokens+refill, l.max)
			b.lastRefill = now
		}
	}

	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// prune drops buckets idle for two windows. Callers hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
	l.lastPrune = now
}
