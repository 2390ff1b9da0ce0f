package pipeline

import (
	"context"

	"github.com/vietddude/harvester/internal/core/domain"
)

// Node is one processing step. Process records its output in the TaskContext
// under the node's identifier and may read outputs recorded by earlier nodes.
// Instances are shared across concurrent runs.
type Node interface {
	Process(ctx context.Context, tc *domain.TaskContext) error
}

// Candidate is a possible successor offered to a router.
type Candidate struct {
	ID   string
	Node Node
}

// Router is a Node that also selects the next node among its declared connections.
// An empty result ends the run.
type Router interface {
	Node
	Route(ctx context.Context, tc *domain.TaskContext, candidates []Candidate) (string, error)
}

// Matcher is implemented by nodes that can evaluate whether a run should be
// routed to them.
type Matcher interface {
	Match(ctx context.Context, tc *domain.TaskContext) (bool, error)
}

// FirstMatch returns the first candidate, in declaration order, whose Match
// reports true. Candidates that do not implement Matcher never match.
func FirstMatch(ctx context.Context, tc *domain.TaskContext, candidates []Candidate) (string, error) {
	for _, c := range candidates {
		m, ok := c.Node.(Matcher)
		if !ok {
			continue
		}
		matched, err := m.Match(ctx, tc)
		if err != nil {
			return "", err
		}
		if matched {
			return c.ID, nil
		}
	}
	return "", nil
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc func(ctx context.Context, tc *domain.TaskContext) error

func (f NodeFunc) Process(ctx context.Context, tc *domain.TaskContext) error {
	return f(ctx, tc)
}
