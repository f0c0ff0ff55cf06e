package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a client may issue another write
type Limiter interface {
	// Allow reports whether a request from key should proceed
	Allow(key string) bool

	// Close stops background work
	Close() error
}

// idleAfter is how long an unused client bucket is kept
const idleAfter = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client in process memory
//
// How it works:
//   - Each client gets a bucket holding up to burst tokens
//   - Tokens refill at the configured rate
//   - Each write consumes 1 token; an empty bucket rejects the write
//   - Buckets unused for 5 minutes are dropped on the next sweep
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int

	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter creates a limiter allowing writesPerSecond per client
// A fractional rate such as 0.2 allows one write every 5 seconds.
// The burst equals one second worth of writes, and is at least 1.
func NewMemoryLimiter(writesPerSecond float64) *MemoryLimiter {
	burst := int(writesPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{
		buckets:   make(map[string]*bucket),
		rate:      rate.Limit(writesPerSecond),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow implements Limiter
func (l *MemoryLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	l.sweepLocked(now)

	return b.limiter.AllowN(now, 1)
}

// sweepLocked drops idle buckets at most once per idle period
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < idleAfter {
		return
	}
	threshold := now.Add(-idleAfter)
	for key, b := range l.buckets {
		if b.lastSeen.Before(threshold) {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Clients returns the number of tracked clients
func (l *MemoryLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close implements Limiter
// The in-memory limiter holds no resources
func (l *MemoryLimiter) Close() error {
	return nil
}
