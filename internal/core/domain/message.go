package domain

import "time"

// QueueMessage is the wire form of an event on the work queue.
type QueueMessage struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	OriginService string         `json:"origin_service"`
}

// MetaOriginService is the event metadata key carrying the producing service.
const MetaOriginService = "origin_service"

// NewQueueMessage wraps an event for the queue.
func NewQueueMessage(ev Event, origin string) QueueMessage {
	ts := ev.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return QueueMessage{
		EventID:       ev.ID,
		EventType:     ev.Type,
		Payload:       ev.Payload,
		Metadata:      ev.Metadata,
		Timestamp:     ts,
		OriginService: origin,
	}
}

// Event converts the message back into an event.
func (m QueueMessage) Event() Event {
	ev := Event{
		ID:        m.EventID,
		Type:      m.EventType,
		Payload:   cloneMap(m.Payload),
		CreatedAt: m.Timestamp,
	}
	if len(m.Metadata) > 0 || m.OriginService != "" {
		ev.Metadata = cloneMap(m.Metadata)
		if m.OriginService != "" {
			ev.Metadata[MetaOriginService] = m.OriginService
		}
	}
	return ev
}
