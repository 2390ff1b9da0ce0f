package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/pipeline"
)

// CleanText normalizes the text produced by an earlier node, or a payload
// field when no such output exists.
//
// Params:
//
//	source_node: node whose segments are cleaned (default "fetch_transcript")
//	text_field:  payload fallback key (default "text")
type CleanText struct {
	id         string
	sourceNode string
	textField  string
	deps       Deps
}

func newCleanText(cfg pipeline.NodeConfig, deps Deps) (*CleanText, error) {
	if deps.Cleaner == nil {
		return nil, failure.New(failure.KindConfiguration, failure.CodeConfigMissing,
			fmt.Sprintf("node %q requires a cleaner", cfg.Node), nil)
	}
	p := paramsOf(cfg)
	source, err := p.String("source_node", FetchTranscriptID)
	if err != nil {
		return nil, err
	}
	field, err := p.String("text_field", "text")
	if err != nil {
		return nil, err
	}
	return &CleanText{id: cfg.Node, sourceNode: source, textField: field, deps: deps}, nil
}

func (n *CleanText) Process(ctx context.Context, tc *domain.TaskContext) error {
	raw, err := n.input(tc)
	if err != nil {
		return err
	}

	cleaned := n.deps.Cleaner.Clean(raw)
	tc.SetOutput(n.id, map[string]any{
		"text":       cleaned,
		"characters": len([]rune(cleaned)),
		"words":      len(strings.Fields(cleaned)),
	})
	return nil
}

func (n *CleanText) input(tc *domain.TaskContext) (string, error) {
	if out, ok := tc.OutputMap(n.sourceNode); ok {
		switch segments := out["segments"].(type) {
		case []domain.Segment:
			parts := make([]string, 0, len(segments))
			for _, s := range segments {
				parts = append(parts, s.Text)
			}
			return strings.Join(parts, " "), nil
		case []any:
			parts := make([]string, 0, len(segments))
			for _, s := range segments {
				if m, ok := s.(map[string]any); ok {
					if t, ok := m["text"].(string); ok {
						parts = append(parts, t)
					}
				}
			}
			return strings.Join(parts, " "), nil
		}
		if t, ok := out["text"].(string); ok {
			return t, nil
		}
	}

	if t, ok := tc.Event.Payload[n.textField].(string); ok {
		return t, nil
	}
	return "", failure.New(failure.KindProcessing, failure.CodeProcessingData,
		fmt.Sprintf("no text available for node %q", n.id), nil).
		WithDetail("source_node", n.sourceNode)
}
