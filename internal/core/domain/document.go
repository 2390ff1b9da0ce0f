package domain

import "time"

// DocumentStatus tracks the processing state of a stored document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the persisted record of an event and the result of its pipeline run.
type Document struct {
	ID           string         `json:"id"            db:"id"`
	EventID      string         `json:"event_id"      db:"event_id"`
	PipelineType string         `json:"pipeline_type" db:"pipeline_type"`
	Status       DocumentStatus `json:"status"        db:"status"`
	Event        Event          `json:"event"         db:"-"`
	Result       map[string]any `json:"result,omitempty" db:"-"`
	Error        string         `json:"error,omitempty" db:"last_error"`
	CreatedAt    time.Time      `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"    db:"updated_at"`
}

// Segment is one timed piece of fetched source text.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}
