package domain

import "time"

// FailedEvent represents an event whose pipeline run failed and was not requeued.
type FailedEvent struct {
	ID          string    `json:"id"`
	Event       Event     `json:"event"`
	Kind        string    `json:"kind"`
	Code        string    `json:"code"`
	Error       string    `json:"error_msg"`
	RetryCount  int       `json:"retry_count"`
	LastAttempt time.Time `json:"last_attempt"`
	CreatedAt   time.Time `json:"created_at"`
}
