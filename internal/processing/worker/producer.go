package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// Producer records events as pending documents and pushes them onto the queue.
type Producer struct {
	queue Queue
	docs  storage.DocumentRepository
}

// NewProducer creates a new Producer. docs may be nil to skip recording.
func NewProducer(queue Queue, docs storage.DocumentRepository) *Producer {
	return &Producer{queue: queue, docs: docs}
}

// Submit enqueues ev, assigning an id and timestamp when missing, and returns the event id.
func (p *Producer) Submit(ctx context.Context, ev domain.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if p.docs != nil {
		doc := &domain.Document{
			EventID: ev.ID,
			Event:   ev,
			Status:  domain.DocumentStatusPending,
		}
		if _, err := p.docs.Store(ctx, doc); err != nil {
			return "", fmt.Errorf("failed to record event %s: %w", ev.ID, err)
		}
	}

	if err := p.queue.Enqueue(ctx, ev); err != nil {
		return "", fmt.Errorf("failed to enqueue event %s: %w", ev.ID, err)
	}
	return ev.ID, nil
}
