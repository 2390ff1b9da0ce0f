// Package failure defines the classified error taxonomy shared by the
// pipeline engine, the resilience middleware and the infrastructure adapters.
package failure

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
)

// Kind is the coarse category of a classified error.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindDatabase      Kind = "database"
	KindScraping      Kind = "scraping"
	KindValidation    Kind = "validation"
	KindProcessing    Kind = "processing"
	KindSystem        Kind = "system"
)

// Severity orders errors from least to most serious.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// LevelCritical is the slog level used for SeverityCritical.
const LevelCritical = slog.LevelError + 4

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
}

// Level maps the severity onto a slog level.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityCritical:
		return LevelCritical
	default:
		return slog.LevelError
	}
}

// ErrRetryExhausted matches, via errors.Is, any classified error produced
// after a retry loop ran out of attempts.
var ErrRetryExhausted = errors.New("retry exhausted")

// Error is a classified error.
type Error struct {
	Kind           Kind
	Code           Code
	Severity       Severity
	Message        string
	Details        map[string]any
	Err            error
	RetryExhausted bool

	// outer is the chain that wrapped this error before it was rewrapped.
	outer error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.outer != nil {
		errs = append(errs, e.outer)
	}
	return errs
}

// Clone returns a copy of e with its own details map.
func (e *Error) Clone() *Error {
	c := *e
	c.Details = maps.Clone(e.Details)
	if c.Details == nil {
		c.Details = make(map[string]any)
	}
	return &c
}

// Within returns a copy of e that also unwraps to outer, the error chain e
// was found in. Text that outer adds around e is prefixed to the message.
func (e *Error) Within(outer error) *Error {
	c := e.Clone()
	if outer == nil || outer == error(e) {
		return c
	}
	c.outer = outer
	if prefix, ok := strings.CutSuffix(outer.Error(), e.Error()); ok {
		c.Message = prefix + c.Message
	}
	return c
}

// Is reports ErrRetryExhausted for errors produced by an exhausted retry loop.
func (e *Error) Is(target error) bool {
	return target == ErrRetryExhausted && e.RetryExhausted
}

// Attempts returns the recorded attempt count, or 0.
func (e *Error) Attempts() int {
	n, _ := e.Details["attempts"].(int)
	return n
}

// WithDetail sets a detail entry and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSeverity overrides the severity and returns the error for chaining.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Transient reports whether the failure may clear on a later attempt.
// Unavailable or unparsable sources and bad input never do.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindDatabase, KindSystem:
		return true
	case KindScraping:
		return e.Code != CodeScrapingParse
	}
	return false
}

// ToMap returns a serializable form of the error.
func (e *Error) ToMap() map[string]any {
	details := maps.Clone(e.Details)
	if details == nil {
		details = map[string]any{}
	}
	m := map[string]any{
		"kind":       string(e.Kind),
		"error_code": string(e.Code),
		"message":    e.Message,
		"severity":   e.Severity.String(),
		"details":    details,
	}
	if e.Err != nil {
		m["original_error"] = e.Err.Error()
	} else {
		m["original_error"] = nil
	}
	return m
}

// LogAttrs returns slog attributes describing the error.
func (e *Error) LogAttrs() []any {
	attrs := []any{
		"kind", string(e.Kind),
		"code", string(e.Code),
		"severity", e.Severity.String(),
	}
	if len(e.Details) > 0 {
		attrs = append(attrs, "details", e.Details)
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}
	return attrs
}

// New creates a classified error with the default severity for its kind.
func New(kind Kind, code Code, message string, err error) *Error {
	return &Error{
		Kind:     kind,
		Code:     code,
		Severity: defaultSeverity(kind),
		Message:  message,
		Details:  make(map[string]any),
		Err:      err,
	}
}

func defaultSeverity(kind Kind) Severity {
	if kind == KindSystem {
		return SeverityCritical
	}
	return SeverityError
}

func Configuration(message string, err error) *Error {
	return New(KindConfiguration, CodeConfigInvalid, message, err)
}

func Database(message string, err error) *Error {
	return New(KindDatabase, CodeDatabaseQuery, message, err)
}

func Scraping(message string, err error) *Error {
	return New(KindScraping, CodeScrapingParse, message, err)
}

func Validation(message string, err error) *Error {
	return New(KindValidation, CodeValidation, message, err)
}

func Processing(message string, err error) *Error {
	return New(KindProcessing, CodeProcessingFailed, message, err)
}

func System(message string, err error) *Error {
	return New(KindSystem, CodeSystemResource, message, err)
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsKind reports whether err's chain holds a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	fe, ok := As(err)
	return ok && fe.Kind == kind
}
