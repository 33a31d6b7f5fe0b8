package boundary

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is the admission-side storm-protection contract.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter gives each key (here, model ID) its own token bucket,
// grounded on the teacher's scheduler/limiter.go idiom.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewTokenBucketLimiter builds a limiter allowing r requests/sec per key,
// with burst b.
func NewTokenBucketLimiter(r float64, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Allow reports whether a request under key may proceed now.
func (l *TokenBucketLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = limiter
	}
	return limiter.Allow()
}

var _ RateLimiter = (*TokenBucketLimiter)(nil)
