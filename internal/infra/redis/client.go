package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// Client wraps the Redis connection shared by the queue and the failed-event set.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// Queue is the list key events are pushed to and popped from.
	Queue string `yaml:"queue"`
	// FailedPrefix namespaces the failed-event keys.
	FailedPrefix string `yaml:"failed_prefix"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RegisterErrors adds the Redis error mappings to cl.
func RegisterErrors(cl *resilience.Classifier) {
	cl.RegisterSentinel(redis.ErrClosed, func(err error) *failure.Error {
		return failure.New(failure.KindDatabase, failure.CodeDatabaseConnection, "Redis connection closed", err)
	})
	resilience.RegisterType[redis.Error](cl, func(err error) *failure.Error {
		return failure.New(failure.KindDatabase, failure.CodeDatabaseQuery, "Redis command failed", err)
	})
}

// Retryable reports whether a Redis error is worth another attempt.
func Retryable(err error) bool {
	return !errors.Is(err, redis.ErrClosed) && !errors.Is(err, ErrMalformedMessage)
}
