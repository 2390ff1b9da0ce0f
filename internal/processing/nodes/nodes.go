// Package nodes holds the node implementations available to pipeline schemas.
package nodes

import (
	"log/slog"

	"github.com/vietddude/harvester/internal/infra/fetch"
	"github.com/vietddude/harvester/internal/infra/text"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// Catalog keys.
const (
	FetchTranscriptID = "fetch_transcript"
	CleanTextID       = "clean_text"
	RouteID           = "route"
	EventTypeMatchID  = "match_event_type"
	PayloadMatchID    = "match_payload_key"
	AnnotateID        = "annotate"
)

// Deps are the collaborators shared by node instances.
type Deps struct {
	Fetcher fetch.Fetcher
	Cleaner text.Cleaner
	// FetchGuard wraps every fetch call, typically resilience.Standard.
	FetchGuard resilience.Wrapper
	Logger     *slog.Logger
}

// Register adds every node implementation to catalog.
func Register(catalog *pipeline.Catalog, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	catalog.Register(FetchTranscriptID, func(cfg pipeline.NodeConfig) (pipeline.Node, error) {
		return newFetchTranscript(cfg, deps)
	})
	catalog.Register(CleanTextID, func(cfg pipeline.NodeConfig) (pipeline.Node, error) {
		return newCleanText(cfg, deps)
	})
	catalog.Register(RouteID, func(cfg pipeline.NodeConfig) (pipeline.Node, error) {
		return &Route{id: cfg.Node}, nil
	})
	catalog.Register(EventTypeMatchID, func(cfg pipeline.NodeConfig) (pipeline.Node, error) {
		return newEventTypeMatch(cfg)
	})
	catalog.Register(PayloadMatchID, func(cfg pipeline.NodeConfig) (pipeline.Node, error) {
		return newPayloadMatch(cfg)
	})
	catalog.Register(AnnotateID, func(cfg pipeline.NodeConfig) (pipeline.Node, error) {
		return newAnnotate(cfg)
	})
}
