package storage

import (
	"context"
	"errors"

	"github.com/vietddude/harvester/internal/core/domain"
)

var (
	// ErrDocumentNotFound is returned when a document doesn't exist
	ErrDocumentNotFound = errors.New("document not found")
)

// DocumentRepository handles document storage operations
type DocumentRepository interface {
	// Store inserts or updates the document keyed by its event id and returns its id
	Store(ctx context.Context, doc *domain.Document) (string, error)

	// Get retrieves a document by id
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetByEventID retrieves the document recorded for an event
	GetByEventID(ctx context.Context, eventID string) (*domain.Document, error)

	// GetPending returns up to batchSize pending documents, oldest first
	GetPending(ctx context.Context, batchSize int) ([]*domain.Document, error)

	// MarkStatus updates the status and last error of a document
	MarkStatus(ctx context.Context, id string, status domain.DocumentStatus, lastError string) error

	// TouchIfStatus refreshes updated_at only while the document still has the given status
	TouchIfStatus(ctx context.Context, id string, status domain.DocumentStatus) (bool, error)

	// CountByStatus returns document counts grouped by status
	CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error)
}

// FailedEventRepository handles events parked after a failed run
type FailedEventRepository interface {
	// Add parks a failed event
	Add(ctx context.Context, fe *domain.FailedEvent) error

	// GetNext returns the failed event with the fewest retries
	GetNext(ctx context.Context) (*domain.FailedEvent, error)

	// IncrementRetry bumps the retry count of a parked event
	IncrementRetry(ctx context.Context, id string) error

	// MarkResolved removes a parked event
	MarkResolved(ctx context.Context, id string) error

	// GetAll returns every parked event
	GetAll(ctx context.Context) ([]*domain.FailedEvent, error)

	// Count returns the number of parked events
	Count(ctx context.Context) (int, error)
}
