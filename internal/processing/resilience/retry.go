package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/metrics"
)

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	// Attempts is the total number of invocations, including the first.
	Attempts    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Exponential bool
	// RetryOn selects retryable errors. Nil retries every error.
	RetryOn func(error) bool
	// Context labels log lines and the exhausted error.
	Context string
}

// DefaultRetryPolicy provides sensible defaults.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:    3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    300 * time.Second,
	Exponential: true,
}

// Delay returns the wait before the attempt following failure number
// attempt (0-indexed): BaseDelay*2^attempt capped at MaxDelay, or BaseDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if !p.Exponential {
		return p.BaseDelay
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

func (p RetryPolicy) retryable(err error) bool {
	return p.RetryOn == nil || p.RetryOn(err)
}

// RetryOption customizes a retry wrapper.
type RetryOption func(*retrier)

// WithSleeper replaces the wait function.
func WithSleeper(s Sleeper) RetryOption {
	return func(r *retrier) { r.sleep = s }
}

// WithRetryLogger sets the logger used for per-attempt warnings.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(r *retrier) { r.logger = l }
}

type retrier struct {
	policy     RetryPolicy
	classifier *Classifier
	sleep      Sleeper
	logger     *slog.Logger
}

// Retry re-invokes the wrapped operation on retryable failures. When the
// attempts run out the last error is classified and returned with
// RetryExhausted set.
func Retry(policy RetryPolicy, classifier *Classifier, opts ...RetryOption) Wrapper {
	r := &retrier{
		policy:     policy,
		classifier: classifier,
		sleep:      SleepContext,
		logger:     classifier.logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy.Attempts < 1 {
		r.policy.Attempts = 1
	}
	return r.wrap
}

func (r *retrier) wrap(op Operation) Operation {
	return func(ctx context.Context) error {
		attempts := r.policy.Attempts
		for attempt := 0; attempt < attempts; attempt++ {
			err := op(ctx)
			if err == nil {
				return nil
			}
			if !r.policy.retryable(err) {
				return err
			}
			if ctx.Err() != nil {
				return err
			}

			if attempt == attempts-1 {
				return r.exhausted(ctx, err, attempts)
			}

			delay := r.policy.Delay(attempt)
			metrics.RetriesTotal.WithLabelValues(r.label()).Inc()
			r.logger.Warn(fmt.Sprintf("Attempt %d/%d failed, retrying", attempt+1, attempts),
				"context", r.policy.Context,
				"attempt", attempt+1,
				"wait", delay,
				"error", err,
			)
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *retrier) exhausted(ctx context.Context, lastErr error, attempts int) error {
	label := "retry exhausted"
	if r.policy.Context != "" {
		label = r.policy.Context + " (retry exhausted)"
	}

	fe := r.classifier.Classify(lastErr)
	exhausted := &failure.Error{
		Kind:           fe.Kind,
		Code:           fe.Code,
		Severity:       fe.Severity,
		Message:        label + ": " + fe.Message,
		Details:        map[string]any{},
		Err:            lastErr,
		RetryExhausted: true,
	}
	for k, v := range fe.Details {
		exhausted.Details[k] = v
	}
	exhausted.Details["attempts"] = attempts
	exhausted.Details["last_error"] = lastErr.Error()

	metrics.RetryExhaustedTotal.WithLabelValues(r.label()).Inc()
	r.logger.Log(ctx, exhausted.Severity.Level(), exhausted.Message, exhausted.LogAttrs()...)
	return exhausted
}

func (r *retrier) label() string {
	if r.policy.Context == "" {
		return "default"
	}
	return r.policy.Context
}
