package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/harvester/internal/core/domain"
)

// ErrMalformedMessage is returned when a queue entry cannot be decoded.
var ErrMalformedMessage = errors.New("malformed queue message")

// DefaultQueue is the list key used when none is configured.
const DefaultQueue = "raw_data_queue"

// Queue is a FIFO work queue on a Redis list: producers LPUSH, consumers BRPOP.
type Queue struct {
	rdb    *redis.Client
	key    string
	origin string
}

// NewQueue creates a queue on key. origin is stamped on produced messages.
func NewQueue(client *Client, key, origin string) *Queue {
	if key == "" {
		key = DefaultQueue
	}
	return &Queue{rdb: client.rdb, key: key, origin: origin}
}

// EncodeMessage serializes an event for the queue.
func EncodeMessage(ev domain.Event, origin string) ([]byte, error) {
	data, err := json.Marshal(domain.NewQueueMessage(ev, origin))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a queue entry back into an event.
func DecodeMessage(data []byte) (domain.Event, error) {
	var msg domain.QueueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.EventID == "" || msg.EventType == "" {
		return domain.Event{}, fmt.Errorf("%w: event_id and event_type are required", ErrMalformedMessage)
	}
	return msg.Event(), nil
}

// Enqueue pushes an event onto the queue.
func (q *Queue) Enqueue(ctx context.Context, ev domain.Event) error {
	data, err := EncodeMessage(ev, q.origin)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next event. It returns nil, nil on timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Event, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop failed: %w", err)
	}
	// result is [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("%w: unexpected brpop reply of %d elements", ErrMalformedMessage, len(result))
	}

	ev, err := DecodeMessage([]byte(result[1]))
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Depth returns the number of waiting events.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen failed: %w", err)
	}
	return int(n), nil
}
