package connectors

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// perSlugLimiter keys a token-bucket limiter by connector slug. Each
// connector gets its own independent bucket, all built from the same
// default RateLimit; a non-positive default rate disables limiting for
// every slug. This is the process-local simplification of the teacher's
// AdaptiveRateLimiter: no cluster-coordinated budget (no Pulse/rmap — see
// DESIGN.md), just a per-process golang.org/x/time/rate.Limiter per slug.
type perSlugLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaults RateLimit
}

// RateLimit configures a token bucket: ratePerSecond tokens refill per
// second, up to burst capacity.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

func newPerSlugLimiter(defaults RateLimit) *perSlugLimiter {
	return &perSlugLimiter{limiters: make(map[string]*rate.Limiter), defaults: defaults}
}

func (p *perSlugLimiter) limiterFor(slug string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[slug]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.defaults.RatePerSecond), p.defaults.Burst)
		p.limiters[slug] = l
	}
	return l
}

// Allow reports whether slug may execute an action right now without
// blocking, consuming one token if so.
func (p *perSlugLimiter) Allow(slug string) bool {
	if p.defaults.RatePerSecond <= 0 {
		return true
	}
	return p.limiterFor(slug).Allow()
}

// Wait blocks until slug's bucket has capacity or ctx is canceled.
func (p *perSlugLimiter) Wait(ctx context.Context, slug string) error {
	if p.defaults.RatePerSecond <= 0 {
		return nil
	}
	return p.limiterFor(slug).Wait(ctx)
}
