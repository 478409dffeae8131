package engine

import (
	"sync"
	"time"
)

// RateLimiter allows at most one reply per key per interval. Stale entries
// are evicted on the fly so the map stays bounded by the set of recently
// active correspondents.
type RateLimiter struct {
	mu        sync.Mutex
	interval  time.Duration
	last      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a reply to key may be generated now, and if so
// claims the slot.
func (r *RateLimiter) Allow(key string) bool {
	if r.interval <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.interval {
		r.sweep(now)
	}

	if at, ok := r.last[key]; ok && now.Sub(at) < r.interval {
		return false
	}
	r.last[key] = now
	return true
}

func (r *RateLimiter) sweep(now time.Time) {
	for k, at := range r.last {
		if now.Sub(at) >= r.interval {
			delete(r.last, k)
		}
	}
	r.lastSweep = now
}
