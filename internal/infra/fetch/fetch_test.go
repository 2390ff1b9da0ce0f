package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotPath, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLang = r.URL.Query().Get("lang")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"text":"hello","start":0,"duration":1.5},{"text":"world","start":1.5,"duration":2}]`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Config{BaseURL: srv.URL + "/", Language: "en"})
	segments, err := f.Fetch(context.Background(), "abc 123")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/abc 123" {
		t.Errorf("path = %q", gotPath)
	}
	if gotLang != "en" {
		t.Errorf("lang = %q", gotLang)
	}
	if len(segments) != 2 || segments[1].Text != "world" || segments[1].Start != 1.5 {
		t.Errorf("segments = %+v", segments)
	}
}

func TestHTTPFetcher_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		expect    error
		retryable bool
		code      failure.Code
	}{
		{"not found", http.StatusNotFound, "", ErrNotFound, false, failure.CodeScrapingParse},
		{"rate limited", http.StatusTooManyRequests, "", ErrRateLimited, true, failure.CodeScrapingRateLimit},
		{"server error", http.StatusBadGateway, "upstream down", ErrUnexpectedStatus, true, failure.CodeScrapingNetwork},
		{"empty", http.StatusOK, "[]", ErrEmptyResponse, false, failure.CodeScrapingParse},
	}

	classifier := resilience.DefaultClassifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterErrors(classifier)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(Config{BaseURL: srv.URL}).Fetch(context.Background(), "id")
			if !errors.Is(err, tt.expect) {
				t.Fatalf("err = %v, want %v", err, tt.expect)
			}
			if Retryable(err) != tt.retryable {
				t.Errorf("Retryable = %v, want %v", Retryable(err), tt.retryable)
			}
			fe := classifier.Classify(err)
			if fe.Kind != failure.KindScraping || fe.Code != tt.code {
				t.Errorf("classified as %s/%s, want scraping/%s", fe.Kind, fe.Code, tt.code)
			}
		})
	}
}

func TestHTTPFetcher_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(Config{BaseURL: srv.URL}).Fetch(context.Background(), "id")
	if err == nil {
		t.Fatal("expected decode error")
	}
}
