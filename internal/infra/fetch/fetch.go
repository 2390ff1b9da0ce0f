// Package fetch retrieves timed source text segments from a transcript endpoint.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

var (
	ErrNotFound         = errors.New("source not found")
	ErrRateLimited      = errors.New("source rate limited the request")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrEmptyResponse    = errors.New("source returned no segments")
)

// Fetcher retrieves the segments of one source.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string) ([]domain.Segment, error)
}

// Config holds transcript endpoint settings.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit time.Duration `yaml:"rate_limit"`
	// Language is sent as the lang query parameter when set.
	Language string `yaml:"language"`
}

// HTTPFetcher fetches segments as JSON over HTTP.
type HTTPFetcher struct {
	baseURL  string
	language string
	client   *http.Client
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch performs GET {base_url}/{sourceID} and decodes [{text,start,duration}].
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceID string) ([]domain.Segment, error) {
	endpoint := f.baseURL + "/" + url.PathEscape(sourceID)
	if f.language != "" {
		endpoint += "?" + url.Values{"lang": {f.language}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sourceID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
	}

	var segments []domain.Segment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, sourceID)
	}
	return segments, nil
}

// Retryable reports whether a fetch error is worth another attempt.
func Retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrEmptyResponse) &&
		!errors.Is(err, context.Canceled)
}

// RegisterErrors adds the fetch error mappings to c.
func RegisterErrors(c *resilience.Classifier) {
	c.RegisterSentinel(ErrNotFound, func(err error) *failure.Error {
		return failure.New(failure.KindScraping, failure.CodeScrapingParse, "Source not available", err)
	})
	c.RegisterSentinel(ErrEmptyResponse, func(err error) *failure.Error {
		return failure.New(failure.KindScraping, failure.CodeScrapingParse, "Source has no content", err)
	})
	c.RegisterSentinel(ErrRateLimited, func(err error) *failure.Error {
		return failure.New(failure.KindScraping, failure.CodeScrapingRateLimit, "Source rate limit reached", err)
	})
	c.RegisterSentinel(ErrUnexpectedStatus, func(err error) *failure.Error {
		return failure.New(failure.KindScraping, failure.CodeScrapingNetwork, "Source request failed", err)
	})
}
