package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/harvester/internal/core/domain"
)

const failedEventTTL = 7 * 24 * time.Hour

// FailedEventRepo implements storage.FailedEventRepository using a Redis
// sorted set scored by retry count plus one key per event.
type FailedEventRepo struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewFailedEventRepo creates a new Redis-backed failed event repository.
func NewFailedEventRepo(client *Client, prefix string) *FailedEventRepo {
	if prefix == "" {
		prefix = "harvester"
	}
	return &FailedEventRepo{rdb: client.rdb, prefix: prefix, now: time.Now}
}

// Key helpers
func (r *FailedEventRepo) queueKey() string {
	return fmt.Sprintf("%s:failed_events", r.prefix)
}

func (r *FailedEventRepo) eventKey(id string) string {
	return fmt.Sprintf("%s:failed_event:%s", r.prefix, id)
}

func (r *FailedEventRepo) save(ctx context.Context, fe *domain.FailedEvent) error {
	data, err := json.Marshal(fe)
	if err != nil {
		return fmt.Errorf("failed to marshal failed event: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.eventKey(fe.ID), data, failedEventTTL)
	// Lower retry count = retry first
	pipe.ZAdd(ctx, r.queueKey(), redis.Z{Score: float64(fe.RetryCount), Member: fe.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save failed event: %w", err)
	}
	return nil
}

func (r *FailedEventRepo) load(ctx context.Context, id string) (*domain.FailedEvent, error) {
	data, err := r.rdb.Get(ctx, r.eventKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed event: %w", err)
	}

	var fe domain.FailedEvent
	if err := json.Unmarshal(data, &fe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed event: %w", err)
	}
	return &fe, nil
}

// Add parks a failed event.
func (r *FailedEventRepo) Add(ctx context.Context, fe *domain.FailedEvent) error {
	if fe.ID == "" {
		fe.ID = uuid.NewString()
	}
	if fe.CreatedAt.IsZero() {
		fe.CreatedAt = r.now()
	}
	return r.save(ctx, fe)
}

// GetNext retrieves the failed event with the fewest retries.
func (r *FailedEventRepo) GetNext(ctx context.Context) (*domain.FailedEvent, error) {
	for {
		ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("zrange failed: %w", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}

		fe, err := r.load(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		if fe != nil {
			return fe, nil
		}
		// Data expired but ID still in the set
		if err := r.rdb.ZRem(ctx, r.queueKey(), ids[0]).Err(); err != nil {
			return nil, fmt.Errorf("zrem failed: %w", err)
		}
	}
}

// IncrementRetry increments retry count and updates last attempt.
func (r *FailedEventRepo) IncrementRetry(ctx context.Context, id string) error {
	fe, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if fe == nil {
		return fmt.Errorf("failed event %s not found", id)
	}
	fe.RetryCount++
	fe.LastAttempt = r.now()
	return r.save(ctx, fe)
}

// MarkResolved removes a failed event.
func (r *FailedEventRepo) MarkResolved(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, r.queueKey(), id)
	pipe.Del(ctx, r.eventKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to resolve failed event: %w", err)
	}
	return nil
}

// GetAll retrieves all failed events ordered by retry count.
func (r *FailedEventRepo) GetAll(ctx context.Context) ([]*domain.FailedEvent, error) {
	ids, err := r.rdb.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	events := make([]*domain.FailedEvent, 0, len(ids))
	for _, id := range ids {
		fe, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if fe != nil {
			events = append(events, fe)
		}
	}
	return events, nil
}

// Count returns the number of failed events.
func (r *FailedEventRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
