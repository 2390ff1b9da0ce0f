package nodes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/infra/text"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// =============================================================================
// Mocks
// =============================================================================

type stubFetcher struct {
	segments []domain.Segment
	errs     []error
	calls    int
}

func (s *stubFetcher) Fetch(ctx context.Context, sourceID string) ([]domain.Segment, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.segments, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const transcriptSchema = `
start: fetch_transcript
nodes:
  - node: fetch_transcript
    connections: [clean_text]
  - node: clean_text
    connections: [route]
  - node: route
    router: true
    connections: [lectures, fallback]
  - node: lectures
    type: match_event_type
    params:
      event_types: [lecture]
  - node: fallback
    type: annotate
    params:
      catch_all: true
      metadata:
        category: general
`

func buildEngine(t *testing.T, fetcher *stubFetcher, guard resilience.Wrapper) *pipeline.Engine {
	t.Helper()

	var schema pipeline.Schema
	if err := yaml.Unmarshal([]byte(transcriptSchema), &schema); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}

	catalog := pipeline.NewCatalog()
	Register(catalog, Deps{
		Fetcher:    fetcher,
		Cleaner:    text.NewNormalizer(text.Options{}, discardLogger()),
		FetchGuard: guard,
		Logger:     discardLogger(),
	})

	engine, err := pipeline.NewEngine("transcripts", schema, catalog, pipeline.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

// =============================================================================
// Tests
// =============================================================================

func TestTranscriptPipeline(t *testing.T) {
	fetcher := &stubFetcher{segments: []domain.Segment{
		{Text: "  Hello\n", Start: 0, Duration: 1},
		{Text: "ＷＯＲＬＤ", Start: 1, Duration: 2},
	}}
	engine := buildEngine(t, fetcher, nil)

	tests := []struct {
		name      string
		eventType string
		next      string
		category  any
	}{
		{"lecture branch", "lecture", "lectures", nil},
		{"fallback branch", "podcast", "fallback", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := engine.Run(context.Background(), domain.Event{
				ID:      "evt",
				Type:    tt.eventType,
				Payload: map[string]any{"source_id": "vid-1"},
			})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			cleaned, _ := tc.OutputMap(CleanTextID)
			if cleaned["text"] != "Hello WORLD" {
				t.Errorf("cleaned text = %q", cleaned["text"])
			}
			if cleaned["words"] != 2 {
				t.Errorf("words = %v", cleaned["words"])
			}

			fetched, _ := tc.OutputMap(FetchTranscriptID)
			if fetched["segment_count"] != 2 || fetched["duration"] != 3.0 {
				t.Errorf("fetch output = %v", fetched)
			}

			route, _ := tc.OutputMap(RouteID)
			if route[pipeline.NextNodeKey] != tt.next {
				t.Errorf("next_node = %v, want %s", route[pipeline.NextNodeKey], tt.next)
			}
			if tc.Metadata["category"] != tt.category {
				t.Errorf("category = %v, want %v", tc.Metadata["category"], tt.category)
			}
		})
	}
}

func TestFetchTranscript_MissingSource(t *testing.T) {
	engine := buildEngine(t, &stubFetcher{}, nil)

	_, err := engine.Run(context.Background(), domain.Event{ID: "evt", Payload: map[string]any{}})
	if !failure.IsKind(err, failure.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestFetchTranscript_GuardRetries(t *testing.T) {
	transient := errors.New("connection reset")
	fetcher := &stubFetcher{
		segments: []domain.Segment{{Text: "ok"}},
		errs:     []error{transient, transient},
	}
	classifier := resilience.NewClassifier(discardLogger())
	guard := resilience.Standard(nil, resilience.RetryPolicy{Attempts: 3}, classifier, "fetch transcript")
	engine := buildEngine(t, fetcher, guard)

	tc, err := engine.Run(context.Background(), domain.Event{
		ID: "evt", Type: "lecture", Payload: map[string]any{"source_id": "vid"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fetcher.calls != 3 {
		t.Errorf("fetch calls = %d, want 3", fetcher.calls)
	}
	cleaned, _ := tc.OutputMap(CleanTextID)
	if cleaned["text"] != "ok" {
		t.Errorf("cleaned = %v", cleaned)
	}
}

func TestFetchTranscript_GuardExhausted(t *testing.T) {
	transient := errors.New("connection reset")
	fetcher := &stubFetcher{errs: []error{transient, transient, transient}}
	classifier := resilience.NewClassifier(discardLogger())
	guard := resilience.Standard(nil, resilience.RetryPolicy{Attempts: 2}, classifier, "fetch transcript")
	engine := buildEngine(t, fetcher, guard)

	_, err := engine.Run(context.Background(), domain.Event{
		ID: "evt", Type: "lecture", Payload: map[string]any{"source_id": "vid"},
	})
	if !errors.Is(err, failure.ErrRetryExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls)
	}
}

func TestCleanText_PayloadFallback(t *testing.T) {
	catalog := pipeline.NewCatalog()
	Register(catalog, Deps{Cleaner: text.NewNormalizer(text.Options{Lowercase: true}, nil), Logger: discardLogger()})

	engine, err := pipeline.NewEngine("clean-only", pipeline.Schema{
		Start: "clean_text",
		Nodes: []pipeline.NodeConfig{{Node: "clean_text"}},
	}, catalog, pipeline.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	tc, err := engine.Run(context.Background(), domain.Event{ID: "e", Payload: map[string]any{"text": " Some   TEXT "}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	out, _ := tc.OutputMap(CleanTextID)
	if out["text"] != "some text" {
		t.Errorf("text = %q", out["text"])
	}

	_, err = engine.Run(context.Background(), domain.Event{ID: "e", Payload: map[string]any{}})
	if !failure.IsKind(err, failure.KindProcessing) {
		t.Errorf("expected processing error, got %v", err)
	}
}

func TestFetchTranscript_RequiresFetcher(t *testing.T) {
	catalog := pipeline.NewCatalog()
	Register(catalog, Deps{Logger: discardLogger()})

	_, err := pipeline.NewEngine("p", pipeline.Schema{
		Start: "fetch_transcript",
		Nodes: []pipeline.NodeConfig{{Node: "fetch_transcript"}},
	}, catalog, pipeline.WithLogger(discardLogger()))
	if !failure.IsKind(err, failure.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestPayloadMatch(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		payload map[string]any
		expect  bool
	}{
		{"key present", map[string]any{"key": "url"}, map[string]any{"url": "x"}, true},
		{"key absent", map[string]any{"key": "url"}, map[string]any{}, false},
		{"equals match", map[string]any{"key": "lang", "equals": "en"}, map[string]any{"lang": "en"}, true},
		{"equals mismatch", map[string]any{"key": "lang", "equals": "en"}, map[string]any{"lang": "fr"}, false},
		{"numeric equals", map[string]any{"key": "v", "equals": 2}, map[string]any{"v": 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newPayloadMatch(pipeline.NodeConfig{Node: "m", Params: tt.params})
			if err != nil {
				t.Fatalf("newPayloadMatch failed: %v", err)
			}
			tc := domain.NewTaskContext(domain.Event{Payload: tt.payload})
			got, _ := m.Match(context.Background(), tc)
			if got != tt.expect {
				t.Errorf("Match = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestEventTypeMatch_RequiresTypes(t *testing.T) {
	if _, err := newEventTypeMatch(pipeline.NodeConfig{Node: "m"}); err == nil {
		t.Error("expected error for empty event_types")
	}
}
