package nodes

import (
	"context"
	"fmt"
	"slices"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/processing/pipeline"
)

// Route hands the run to the first connected candidate that matches.
type Route struct {
	id string
}

func (r *Route) Process(ctx context.Context, tc *domain.TaskContext) error {
	return nil
}

func (r *Route) Route(ctx context.Context, tc *domain.TaskContext, candidates []pipeline.Candidate) (string, error) {
	return pipeline.FirstMatch(ctx, tc, candidates)
}

// EventTypeMatch matches events whose type is listed in the event_types param.
type EventTypeMatch struct {
	id    string
	types []string
}

func newEventTypeMatch(cfg pipeline.NodeConfig) (*EventTypeMatch, error) {
	types, err := paramsOf(cfg).Strings("event_types")
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("node %q: event_types must not be empty", cfg.Node)
	}
	return &EventTypeMatch{id: cfg.Node, types: types}, nil
}

func (m *EventTypeMatch) Match(ctx context.Context, tc *domain.TaskContext) (bool, error) {
	return slices.Contains(m.types, tc.Event.Type), nil
}

func (m *EventTypeMatch) Process(ctx context.Context, tc *domain.TaskContext) error {
	tc.SetOutput(m.id, map[string]any{"event_type": tc.Event.Type})
	return nil
}

// PayloadMatch matches events whose payload holds key, optionally equal to value.
type PayloadMatch struct {
	id       string
	key      string
	value    string
	hasValue bool
}

func newPayloadMatch(cfg pipeline.NodeConfig) (*PayloadMatch, error) {
	p := paramsOf(cfg)
	key, err := p.String("key", "")
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("node %q: key is required", cfg.Node)
	}
	raw, hasValue := p["equals"]
	var value string
	if hasValue {
		value = fmt.Sprint(raw)
	}
	return &PayloadMatch{id: cfg.Node, key: key, value: value, hasValue: hasValue}, nil
}

func (m *PayloadMatch) Match(ctx context.Context, tc *domain.TaskContext) (bool, error) {
	v, ok := tc.Event.Payload[m.key]
	if !ok || v == nil {
		return false, nil
	}
	if !m.hasValue {
		return true, nil
	}
	return fmt.Sprint(v) == m.value, nil
}

func (m *PayloadMatch) Process(ctx context.Context, tc *domain.TaskContext) error {
	tc.SetOutput(m.id, map[string]any{m.key: tc.Event.Payload[m.key]})
	return nil
}

// Annotate copies static metadata into the task context. With catch_all set
// it matches every run, which makes it usable as a router's last candidate.
type Annotate struct {
	id       string
	metadata map[string]any
	catchAll bool
}

func newAnnotate(cfg pipeline.NodeConfig) (*Annotate, error) {
	p := paramsOf(cfg)
	metadata, err := p.Map("metadata")
	if err != nil {
		return nil, err
	}
	catchAll, err := p.Bool("catch_all", false)
	if err != nil {
		return nil, err
	}
	return &Annotate{id: cfg.Node, metadata: metadata, catchAll: catchAll}, nil
}

func (a *Annotate) Match(ctx context.Context, tc *domain.TaskContext) (bool, error) {
	return a.catchAll, nil
}

func (a *Annotate) Process(ctx context.Context, tc *domain.TaskContext) error {
	for k, v := range a.metadata {
		tc.Metadata[k] = v
	}
	tc.SetOutput(a.id, map[string]any{"annotated": len(a.metadata)})
	return nil
}
