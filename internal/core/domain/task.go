package domain

import "fmt"

// TaskContext accumulates state across one pipeline run.
// It is owned by a single run and is not safe for concurrent mutation.
type TaskContext struct {
	Event    Event          `json:"event"`
	Nodes    map[string]any `json:"nodes"`
	Metadata map[string]any `json:"metadata"`
}

// NewTaskContext creates an empty context for the given event.
func NewTaskContext(ev Event) *TaskContext {
	return &TaskContext{
		Event:    ev,
		Nodes:    make(map[string]any),
		Metadata: make(map[string]any),
	}
}

// SetOutput records the output of a node under its identifier.
func (tc *TaskContext) SetOutput(nodeID string, v any) {
	tc.Nodes[nodeID] = v
}

// Output returns the recorded output of a node.
func (tc *TaskContext) Output(nodeID string) (any, bool) {
	v, ok := tc.Nodes[nodeID]
	return v, ok
}

// OutputMap returns a node output that was recorded as a map.
func (tc *TaskContext) OutputMap(nodeID string) (map[string]any, bool) {
	v, ok := tc.Nodes[nodeID].(map[string]any)
	return v, ok
}

// ToMap serializes the context to {event, nodes, metadata}.
func (tc *TaskContext) ToMap() map[string]any {
	return map[string]any{
		"event":    tc.Event.ToMap(),
		"nodes":    cloneMap(tc.Nodes),
		"metadata": cloneMap(tc.Metadata),
	}
}

// TaskContextFromMap rebuilds a context from the output of ToMap.
func TaskContextFromMap(m map[string]any) (*TaskContext, error) {
	evMap, ok := m["event"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("event missing or not a map")
	}
	ev, err := EventFromMap(evMap)
	if err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	nodes, err := mapField(m, "nodes")
	if err != nil {
		return nil, err
	}
	metadata, err := mapField(m, "metadata")
	if err != nil {
		return nil, err
	}

	return &TaskContext{Event: ev, Nodes: nodes, Metadata: metadata}, nil
}
