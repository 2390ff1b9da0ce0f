// Package text normalizes fetched source text before it is stored.
package text

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Cleaner normalizes raw text. Clean never fails; on internal errors it
// returns a best-effort result.
type Cleaner interface {
	Clean(s string) string
}

// Options selects optional normalization steps.
type Options struct {
	StripAccents bool `yaml:"strip_accents"`
	Lowercase    bool `yaml:"lowercase"`
}

// Normalizer applies NFKC normalization, drops control characters and
// collapses whitespace runs to single spaces.
type Normalizer struct {
	opts   Options
	logger *slog.Logger
}

// NewNormalizer creates a new normalizer.
func NewNormalizer(opts Options, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{opts: opts, logger: logger}
}

func (n *Normalizer) chain() transform.Transformer {
	steps := []transform.Transformer{norm.NFKC}
	if n.opts.StripAccents {
		steps = append(steps, norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	}
	steps = append(steps, runes.Remove(runes.Predicate(func(r rune) bool {
		return unicode.IsControl(r) && !unicode.IsSpace(r)
	})))
	return transform.Chain(steps...)
}

// Clean returns the normalized form of s.
func (n *Normalizer) Clean(s string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("Text normalization panicked, returning collapsed input", "panic", r)
			out = collapse(s)
		}
	}()

	normalized, _, err := transform.String(n.chain(), s)
	if err != nil {
		n.logger.Warn("Text normalization failed, returning collapsed input", "error", err)
		return collapse(s)
	}
	if n.opts.Lowercase {
		normalized = strings.ToLower(normalized)
	}
	return collapse(normalized)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
