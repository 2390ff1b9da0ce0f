package domain

import (
	"fmt"
	"maps"
	"time"
)

// Event is the immutable unit of work a pipeline run starts from.
type Event struct {
	ID        string         `json:"event_id"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToMap returns a plain map form of the event suitable for document storage.
func (e Event) ToMap() map[string]any {
	m := map[string]any{
		"event_id":   e.ID,
		"event_type": e.Type,
		"payload":    cloneMap(e.Payload),
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(e.Metadata) > 0 {
		m["metadata"] = cloneMap(e.Metadata)
	}
	return m
}

// EventFromMap is the inverse of Event.ToMap.
func EventFromMap(m map[string]any) (Event, error) {
	var ev Event
	var ok bool

	if ev.ID, ok = m["event_id"].(string); !ok {
		return Event{}, fmt.Errorf("event_id missing or not a string")
	}
	if ev.Type, ok = m["event_type"].(string); !ok {
		return Event{}, fmt.Errorf("event_type missing or not a string")
	}

	payload, err := mapField(m, "payload")
	if err != nil {
		return Event{}, err
	}
	ev.Payload = payload

	metadata, err := mapField(m, "metadata")
	if err != nil {
		return Event{}, err
	}
	if len(metadata) > 0 {
		ev.Metadata = metadata
	}

	switch ts := m["created_at"].(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Event{}, fmt.Errorf("invalid created_at: %w", err)
		}
		ev.CreatedAt = t
	case time.Time:
		ev.CreatedAt = ts
	case nil:
	default:
		return Event{}, fmt.Errorf("created_at has unexpected type %T", ts)
	}

	return ev, nil
}

func mapField(m map[string]any, key string) (map[string]any, error) {
	switch v := m[key].(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return cloneMap(v), nil
	default:
		return nil, fmt.Errorf("%s has unexpected type %T", key, v)
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}
