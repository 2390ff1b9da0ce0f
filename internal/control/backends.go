package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/harvester/internal/core/config"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/infra/storage/memory"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
	"github.com/vietddude/harvester/internal/processing/health"
	"github.com/vietddude/harvester/internal/processing/worker"
)

// Backends are the stores and the work queue selected by configuration.
// Postgres and Redis are used when their URLs are set, memory otherwise.
type Backends struct {
	Documents storage.DocumentRepository
	Failed    storage.FailedEventRepository
	Queue     worker.Queue

	db          *postgres.DB
	redisClient *redisclient.Client
}

// OpenBackends connects to the configured stores.
func OpenBackends(ctx context.Context, cfg config.AppConfig, origin string) (*Backends, error) {
	b := &Backends{}
	store := memory.NewMemoryStorage()

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		b.db = db

		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("failed to migrate db: %w", err)
			}
		}
		b.Documents = postgres.NewDocumentRepo(db)
		slog.Info("Using PostgreSQL storage", "driver", cfg.Database.Driver)
	} else {
		b.Documents = memory.NewDocumentRepo(store)
		slog.Info("Using Memory storage")
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		b.redisClient = client
		b.Queue = redisclient.NewQueue(client, cfg.Redis.Queue, origin)
		b.Failed = redisclient.NewFailedEventRepo(client, cfg.Redis.FailedPrefix)
		slog.Info("Using Redis queue", "queue", cfg.Redis.Queue)
	} else {
		b.Queue = worker.NewMemoryQueue(0)
		b.Failed = memory.NewFailedRepo(store)
		slog.Info("Using Memory queue")
	}

	return b, nil
}

// Pingers returns the backends that can be probed by the health monitor.
func (b *Backends) Pingers() map[string]health.Pinger {
	pingers := make(map[string]health.Pinger)
	if b.db != nil {
		pingers["postgres"] = b.db
	}
	if b.redisClient != nil {
		pingers["redis"] = b.redisClient
	}
	return pingers
}

// Close releases the connections.
func (b *Backends) Close() error {
	var errs []error
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}
