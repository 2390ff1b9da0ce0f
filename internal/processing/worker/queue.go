package worker

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
)

// ErrQueueFull is returned by MemoryQueue when its buffer is exhausted.
var ErrQueueFull = errors.New("queue is full")

// Queue is the work queue events travel through between producers and the pool.
type Queue interface {
	// Enqueue appends an event to the queue
	Enqueue(ctx context.Context, ev domain.Event) error

	// Dequeue waits up to timeout for the next event; nil means the wait timed out
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.Event, error)

	// Depth returns the number of waiting events
	Depth(ctx context.Context) (int, error)
}

// MemoryQueue is a bounded in-process Queue used when Redis is not configured.
type MemoryQueue struct {
	ch chan domain.Event
}

// NewMemoryQueue creates a queue holding up to size events.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan domain.Event, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, ev domain.Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-q.ch:
		return &ev, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Depth(ctx context.Context) (int, error) {
	return len(q.ch), nil
}
