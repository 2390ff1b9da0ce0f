package pipeline

import (
	"errors"
	"testing"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
)

func linearSchema(ids ...string) Schema {
	s := Schema{Start: ids[0]}
	for i, id := range ids {
		cfg := NodeConfig{Node: id}
		if i+1 < len(ids) {
			cfg.Connections = []string{ids[i+1]}
		}
		s.Nodes = append(s.Nodes, cfg)
	}
	return s
}

func TestNewRegistry_RequiresTypeFunc(t *testing.T) {
	_, err := NewRegistry(nil, nil)
	if !errors.Is(err, ErrNoTypeFunc) {
		t.Fatalf("expected ErrNoTypeFunc, got %v", err)
	}
	if !failure.IsKind(err, failure.KindConfiguration) {
		t.Errorf("expected configuration error")
	}
}

func TestNewRegistry_FailsOnInvalidSchema(t *testing.T) {
	f := newFixture()
	f.step("a", false, nil)

	_, err := NewRegistryFromSchemas(ByEventType(nil, ""), map[string]Schema{
		"broken": {Start: "missing", Nodes: []NodeConfig{{Node: "a"}}},
	}, f.catalog, WithLogger(discardLogger()))

	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("expected schema error at construction, got %v", err)
	}
}

func TestRegistry_GetPipeline(t *testing.T) {
	f := newFixture()
	f.step("fetch", false, nil)
	f.step("clean", false, nil)

	reg, err := NewRegistryFromSchemas(
		ByEventType(map[string]string{"raw_data": "transcripts"}, ""),
		map[string]Schema{
			"transcripts": linearSchema("fetch", "clean"),
			"cleanup":     linearSchema("clean"),
		},
		f.catalog,
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	tests := []struct {
		name      string
		eventType string
		expect    string
		unknown   bool
	}{
		{"mapped", "raw_data", "transcripts", false},
		{"identity", "cleanup", "cleanup", false},
		{"unknown", "video", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := domain.Event{ID: "e", Type: tt.eventType}
			engine, err := reg.GetPipeline(ev)
			if tt.unknown {
				if !errors.Is(err, ErrUnknownPipelineType) {
					t.Errorf("expected ErrUnknownPipelineType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetPipeline failed: %v", err)
			}
			if engine.Name() != tt.expect {
				t.Errorf("engine = %s, want %s", engine.Name(), tt.expect)
			}
		})
	}

	if types := reg.Types(); len(types) != 2 || types[0] != "cleanup" {
		t.Errorf("Types() = %v", types)
	}
}

func TestRegistry_EngineReused(t *testing.T) {
	f := newFixture()
	f.step("a", false, nil)

	reg, err := NewRegistryFromSchemas(ByEventType(nil, "only"), map[string]Schema{
		"only": linearSchema("a"),
	}, f.catalog, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	first, _ := reg.GetPipeline(domain.Event{Type: "x"})
	second, _ := reg.GetPipeline(domain.Event{Type: "y"})
	if first != second {
		t.Errorf("engine should be built once and reused")
	}
	if f.builds["a"] != 1 {
		t.Errorf("node built %d times, want 1", f.builds["a"])
	}
}

func TestByPayloadField(t *testing.T) {
	typeOf := ByPayloadField("kind", map[string]string{"yt": "transcripts"}, "")

	tests := []struct {
		name    string
		payload map[string]any
		expect  string
		wantErr bool
	}{
		{"mapped", map[string]any{"kind": "yt"}, "transcripts", false},
		{"passthrough", map[string]any{"kind": "articles"}, "articles", false},
		{"missing", map[string]any{}, "", true},
		{"wrong type", map[string]any{"kind": 7}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := typeOf(domain.Event{ID: "e", Payload: tt.payload})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.expect {
				t.Errorf("tag = %q, want %q", got, tt.expect)
			}
		})
	}
}
