package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between successive invocations.
// Callers serialize through it: the waiting caller holds the limiter.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    Sleeper
}

// NewRateLimiter creates a limiter. A zero interval disables pacing.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
		sleep:    SleepContext,
	}
}

// Interval returns the configured minimum spacing.
func (l *RateLimiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the interval since the previous invocation has elapsed.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		elapsed := l.now().Sub(l.last)
		if remaining := l.interval - elapsed; remaining > 0 {
			if err := l.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	l.last = l.now()
	return nil
}

// RateLimit paces every invocation of the wrapped operation through l.
func RateLimit(l *RateLimiter) Wrapper {
	if l == nil {
		return nil
	}
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			if err := l.Wait(ctx); err != nil {
				return err
			}
			return op(ctx)
		}
	}
}
