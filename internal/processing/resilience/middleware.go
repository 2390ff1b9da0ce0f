// Package resilience provides the rate limiting, retry and error
// classification wrappers that guard node executions and collaborator calls.
package resilience

import (
	"context"
	"time"
)

// Operation is a unit of work guarded by the middleware.
type Operation func(ctx context.Context) error

// Wrapper decorates an Operation.
type Wrapper func(Operation) Operation

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Chain composes wrappers so that the first one is the outermost.
func Chain(wrappers ...Wrapper) Wrapper {
	return func(op Operation) Operation {
		for i := len(wrappers) - 1; i >= 0; i-- {
			if wrappers[i] != nil {
				op = wrappers[i](op)
			}
		}
		return op
	}
}

// Do runs a value-returning call through w.
func Do[T any](ctx context.Context, w Wrapper, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	op := func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}
	if w != nil {
		op = w(op)
	}
	if err := op(ctx); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Standard layers rate limiting, retry and classification around one call.
// Classification is outermost and the limiter paces every attempt.
func Standard(limiter *RateLimiter, policy RetryPolicy, classifier *Classifier, context string) Wrapper {
	return Chain(
		classifier.Catch(HandleOptions{Context: context}),
		Retry(policy, classifier),
		RateLimit(limiter),
	)
}

// SleepContext waits for d unless ctx is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
