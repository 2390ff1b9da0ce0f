package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net"
	"strconv"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/metrics"
)

// Factory builds a classified error from a raw one.
type Factory func(err error) *failure.Error

type rule struct {
	match   func(error) bool
	factory Factory
}

// Classifier maps raw errors onto the failure taxonomy using an ordered
// registration table. The first matching rule wins.
type Classifier struct {
	mu       sync.RWMutex
	rules    []rule
	fallback Factory
	logger   *slog.Logger
}

// NewClassifier creates a classifier with only the system fallback registered.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger: logger,
		fallback: func(err error) *failure.Error {
			return failure.System("Unexpected error occurred", err)
		},
	}
}

// DefaultClassifier registers the mappings for errors raised by the standard
// library and the config parser. Infrastructure packages add their own.
func DefaultClassifier(logger *slog.Logger) *Classifier {
	c := NewClassifier(logger)

	c.RegisterSentinel(context.DeadlineExceeded, func(err error) *failure.Error {
		return failure.Processing("Operation timed out", err)
	})
	RegisterType[*json.SyntaxError](c, func(err error) *failure.Error {
		return failure.Validation("Malformed JSON input", err)
	})
	RegisterType[*json.UnmarshalTypeError](c, func(err error) *failure.Error {
		return failure.Validation("Type validation failed", err)
	})
	RegisterType[*strconv.NumError](c, func(err error) *failure.Error {
		return failure.Validation("Value validation failed", err)
	})
	RegisterType[*yaml.TypeError](c, func(err error) *failure.Error {
		return failure.New(failure.KindConfiguration, failure.CodeConfigInvalid, "Invalid YAML configuration", err)
	})
	RegisterType[net.Error](c, func(err error) *failure.Error {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return failure.New(failure.KindScraping, failure.CodeScrapingTimeout, "Network request timed out", err)
		}
		return failure.New(failure.KindScraping, failure.CodeScrapingNetwork, "Network request failed", err)
	})

	return c
}

// Register appends a rule.
func (c *Classifier) Register(match func(error) bool, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{match: match, factory: f})
}

// RegisterSentinel maps errors matching target via errors.Is.
func (c *Classifier) RegisterSentinel(target error, f Factory) {
	c.Register(func(err error) bool { return errors.Is(err, target) }, f)
}

// RegisterType maps errors whose chain holds a T via errors.As.
func RegisterType[T error](c *Classifier, f Factory) {
	c.Register(func(err error) bool {
		var target T
		return errors.As(err, &target)
	}, f)
}

// SetFallback replaces the factory used when no rule matches.
func (c *Classifier) SetFallback(f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = f
}

// Classify converts err into a classified error without logging it.
// Errors already classified are returned as is.
func (c *Classifier) Classify(err error) *failure.Error {
	if err == nil {
		return nil
	}
	if fe, ok := failure.As(err); ok {
		return fe
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rules {
		if r.match(err) {
			return r.factory(err)
		}
	}
	return c.fallback(err)
}

// Transient reports whether err may clear on another attempt. Errors from an
// exhausted retry loop are final.
func (c *Classifier) Transient(err error) bool {
	if errors.Is(err, failure.ErrRetryExhausted) {
		return false
	}
	return c.Classify(err).Transient()
}

// HandleOptions customizes how a handled error is reported.
type HandleOptions struct {
	// Context is prefixed to the message, e.g. "fetch transcript".
	Context string
	// Severity overrides the kind's default when set.
	Severity *failure.Severity
	// Details are merged into the error details.
	Details map[string]any
	// Match restricts handling to matching errors. Nil handles all.
	Match func(error) bool
}

// Handle classifies err, attaches context and details, and logs it at the
// severity-mapped level.
func (c *Classifier) Handle(ctx context.Context, err error, opts HandleOptions) *failure.Error {
	if err == nil {
		return nil
	}

	fe, already := failure.As(err)
	switch {
	case !already:
		fe = c.Classify(err)
		if opts.Context != "" {
			fe.Message = opts.Context + ": " + fe.Message
		}
	case err != error(fe) || opts.Severity != nil || len(opts.Details) > 0:
		// Never mutate an error other callers may hold.
		fe = fe.Within(err)
	}
	if opts.Severity != nil {
		fe.Severity = *opts.Severity
	}
	if len(opts.Details) > 0 {
		if fe.Details == nil {
			fe.Details = make(map[string]any, len(opts.Details))
		}
		maps.Copy(fe.Details, opts.Details)
	}

	metrics.ErrorsClassified.WithLabelValues(string(fe.Kind), string(fe.Code)).Inc()
	c.logger.Log(ctx, fe.Severity.Level(), fe.Message, fe.LogAttrs()...)
	return fe
}

// Catch is the catch-and-raise wrapper: failures are classified, logged and
// returned to the caller.
func (c *Classifier) Catch(opts HandleOptions) Wrapper {
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			err := op(ctx)
			if err == nil {
				return nil
			}
			if opts.Match != nil && !opts.Match(err) {
				return err
			}
			return c.Handle(ctx, err, opts)
		}
	}
}

// LogErrors is the log-only wrapper. When reraise is false the failure is
// logged and swallowed; callers must opt into that explicitly.
func (c *Classifier) LogErrors(reraise bool) Wrapper {
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			err := op(ctx)
			if err == nil {
				return nil
			}
			fe := c.Classify(err)
			c.logger.Log(ctx, fe.Severity.Level(), "operation failed", fe.LogAttrs()...)
			if reraise {
				return err
			}
			return nil
		}
	}
}
