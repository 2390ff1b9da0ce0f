package nodes

import (
	"context"
	"fmt"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// FetchTranscript retrieves the segments of the source named by a payload field.
//
// Params:
//
//	source_field: payload key holding the source identifier (default "source_id")
type FetchTranscript struct {
	id          string
	sourceField string
	deps        Deps
}

func newFetchTranscript(cfg pipeline.NodeConfig, deps Deps) (*FetchTranscript, error) {
	if deps.Fetcher == nil {
		return nil, failure.New(failure.KindConfiguration, failure.CodeConfigMissing,
			fmt.Sprintf("node %q requires a fetcher", cfg.Node), nil)
	}
	field, err := paramsOf(cfg).String("source_field", "source_id")
	if err != nil {
		return nil, err
	}
	return &FetchTranscript{id: cfg.Node, sourceField: field, deps: deps}, nil
}

func (n *FetchTranscript) Process(ctx context.Context, tc *domain.TaskContext) error {
	sourceID, ok := tc.Event.Payload[n.sourceField].(string)
	if !ok || sourceID == "" {
		return failure.Validation(
			fmt.Sprintf("event %s has no %q to fetch", tc.Event.ID, n.sourceField), nil,
		).WithDetail("node", n.id)
	}

	segments, err := resilience.Do(ctx, n.deps.FetchGuard, func(ctx context.Context) ([]domain.Segment, error) {
		return n.deps.Fetcher.Fetch(ctx, sourceID)
	})
	if err != nil {
		return err
	}

	var total float64
	for _, s := range segments {
		total += s.Duration
	}
	tc.SetOutput(n.id, map[string]any{
		"source_id":     sourceID,
		"segments":      segments,
		"segment_count": len(segments),
		"duration":      total,
	})
	n.deps.Logger.Debug("Fetched transcript", "node", n.id, "source_id", sourceID, "segments", len(segments))
	return nil
}
