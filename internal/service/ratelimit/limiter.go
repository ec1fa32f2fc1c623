package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxKeys = 10000
	idleTTL = 10 * time.Minute
)

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter is a keyed token bucket. Keys are typically client IPs.
// Keys idle for idleTTL are evicted once maxKeys is exceeded.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*entry
	limit rate.Limit
	burst int
	now   func() time.Time
}

func New(refillPerSec float64, capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		m:     make(map[string]*entry),
		limit: rate.Limit(refillPerSec),
		burst: capacity,
		now:   time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		if len(l.m) >= maxKeys {
			l.evict(now)
		}
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

func (l *Limiter) evict(now time.Time) {
	for k, e := range l.m {
		if now.Sub(e.seen) > idleTTL {
			delete(l.m, k)
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
