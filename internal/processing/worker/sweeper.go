package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// Sweeper re-enqueues documents that have been pending for too long.
type Sweeper struct {
	cfg   Config
	queue Queue
	docs  storage.DocumentRepository
	log   *slog.Logger
	now   func() time.Time
}

// NewSweeper creates a new Sweeper.
func NewSweeper(cfg Config, queue Queue, docs storage.DocumentRepository, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cfg:   cfg.withDefaults(),
		queue: queue,
		docs:  docs,
		log:   logger.With("component", "sweeper"),
		now:   time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("Sweep failed", "error", err)
			}
		}
	}
}

// Sweep re-enqueues one batch of stale pending documents and returns how many it sent.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := s.docs.GetPending(ctx, s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	sent := 0
	for _, doc := range pending {
		if doc.UpdatedAt.After(cutoff) {
			continue
		}
		// Claim the document first so a run finishing meanwhile keeps its status.
		touched, err := s.docs.TouchIfStatus(ctx, doc.ID, domain.DocumentStatusPending)
		if err != nil {
			s.log.Warn("Failed to touch document", "document_id", doc.ID, "error", err)
			continue
		}
		if !touched {
			continue
		}
		if err := s.queue.Enqueue(ctx, doc.Event); err != nil {
			s.log.Warn("Failed to re-enqueue document", "document_id", doc.ID, "event_id", doc.EventID, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		s.log.Info("Re-enqueued stale documents", "count", sent)
	}
	return sent, nil
}
