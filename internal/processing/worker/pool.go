// Package worker consumes events from the work queue and runs them through
// the pipeline registered for their type.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/processing/metrics"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// MetaRequeueCount is the event metadata key counting requeues.
const MetaRequeueCount = "requeue_count"

// Outcomes reported by Process.
const (
	OutcomeCompleted = "completed"
	OutcomeRequeued  = "requeued"
	OutcomeParked    = "parked"
)

// Pool runs Concurrency consumers against one queue.
type Pool struct {
	cfg        Config
	queue      Queue
	registry   *pipeline.Registry
	docs       storage.DocumentRepository
	failed     storage.FailedEventRepository
	classifier *resilience.Classifier
	guard      resilience.Wrapper
	queueGuard resilience.Wrapper
	log        *slog.Logger
}

// Deps bundles the collaborators of a Pool.
type Deps struct {
	Queue      Queue
	Registry   *pipeline.Registry
	Documents  storage.DocumentRepository
	Failed     storage.FailedEventRepository
	Classifier *resilience.Classifier
	// Guard wraps every store call. Nil calls the store directly.
	Guard resilience.Wrapper
	// QueueGuard wraps requeues. Nil calls the queue directly.
	QueueGuard resilience.Wrapper
	Logger     *slog.Logger
}

// NewPool creates a worker pool.
func NewPool(cfg Config, deps Deps) *Pool {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = resilience.DefaultClassifier(logger)
	}
	return &Pool{
		cfg:        cfg.withDefaults(),
		queue:      deps.Queue,
		registry:   deps.Registry,
		docs:       deps.Documents,
		failed:     deps.Failed,
		classifier: classifier,
		guard:      deps.Guard,
		queueGuard: deps.QueueGuard,
		log:        logger.With("component", "worker"),
	}
}

// Run blocks until ctx is cancelled or a consumer fails.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Concurrency {
		g.Go(func() error {
			return p.consume(ctx, i)
		})
	}
	p.log.Info("Worker pool started", "concurrency", p.cfg.Concurrency)
	return g.Wait()
}

func (p *Pool) consume(ctx context.Context, id int) error {
	log := p.log.With("consumer", id)
	for {
		if ctx.Err() != nil {
			return nil
		}

		ev, err := p.queue.Dequeue(ctx, p.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("Dequeue failed", "error", err)
			if err := resilience.SleepContext(ctx, time.Second); err != nil {
				return nil
			}
			continue
		}
		if ev == nil {
			continue
		}

		if _, err := p.Process(ctx, *ev); err != nil {
			log.Error("Event handling failed", "event_id", ev.ID, "error", err)
		}
	}
}

// Process runs one event to completion and records the result. It returns the
// outcome, and an error only when the failure could not be recorded either.
func (p *Pool) Process(ctx context.Context, ev domain.Event) (string, error) {
	doc := &domain.Document{
		EventID: ev.ID,
		Event:   ev,
		Status:  domain.DocumentStatusProcessing,
	}

	pipelineType, err := p.registry.GetPipelineType(ev)
	if err != nil {
		return p.fail(ctx, doc, nil, err)
	}
	doc.PipelineType = pipelineType

	if doc.ID, err = p.store(ctx, doc); err != nil {
		return p.fail(ctx, doc, nil, err)
	}

	engine, err := p.registry.GetPipeline(ev)
	if err != nil {
		return p.fail(ctx, doc, nil, err)
	}

	tc, err := engine.Run(ctx, ev)
	if err != nil {
		return p.fail(ctx, doc, tc, err)
	}

	doc.Status = domain.DocumentStatusCompleted
	doc.Result = tc.ToMap()
	doc.Error = ""
	if _, err := p.store(ctx, doc); err != nil {
		return p.fail(ctx, doc, tc, err)
	}

	metrics.EventsProcessed.WithLabelValues(OutcomeCompleted).Inc()
	p.log.Info("Event processed", "event_id", ev.ID, "pipeline", pipelineType)
	return OutcomeCompleted, nil
}

// fail records a failed run, then requeues transient failures or parks the event.
func (p *Pool) fail(ctx context.Context, doc *domain.Document, tc *domain.TaskContext, runErr error) (string, error) {
	ferr := p.classifier.Classify(runErr)
	ev := doc.Event

	doc.Status = domain.DocumentStatusFailed
	doc.Error = ferr.Error()
	if tc != nil {
		doc.Result = tc.ToMap()
	}
	if _, err := p.store(ctx, doc); err != nil {
		p.log.Warn("Failed to record document failure", "event_id", ev.ID, "error", err)
	}

	count := RequeueCount(ev)
	if ferr.Transient() && count < p.cfg.MaxRequeue {
		next := ev
		next.Metadata = cloneMeta(ev.Metadata)
		next.Metadata[MetaRequeueCount] = count + 1
		err := p.requeue(ctx, next)
		if err == nil {
			metrics.EventsProcessed.WithLabelValues(OutcomeRequeued).Inc()
			p.log.Warn("Event requeued",
				"event_id", ev.ID,
				"attempt", count+1,
				"max", p.cfg.MaxRequeue,
				"code", ferr.Code,
				"error", ferr.Message,
			)
			return OutcomeRequeued, nil
		}
		p.log.Warn("Requeue failed, parking event", "event_id", ev.ID, "error", err)
	}

	fe := &domain.FailedEvent{
		Event:       ev,
		Kind:        string(ferr.Kind),
		Code:        string(ferr.Code),
		Error:       ferr.Error(),
		RetryCount:  count,
		LastAttempt: time.Now(),
	}
	if err := p.failed.Add(ctx, fe); err != nil {
		return OutcomeParked, fmt.Errorf("park event %s: %w", ev.ID, errors.Join(runErr, err))
	}
	metrics.EventsProcessed.WithLabelValues(OutcomeParked).Inc()
	metrics.FailedEvents.Inc()
	p.log.Error("Event parked", append([]any{"event_id", ev.ID}, ferr.LogAttrs()...)...)
	return OutcomeParked, nil
}

func (p *Pool) requeue(ctx context.Context, ev domain.Event) error {
	op := func(ctx context.Context) error { return p.queue.Enqueue(ctx, ev) }
	if p.queueGuard != nil {
		op = p.queueGuard(op)
	}
	return op(ctx)
}

func (p *Pool) store(ctx context.Context, doc *domain.Document) (string, error) {
	return resilience.Do(ctx, p.guard, func(ctx context.Context) (string, error) {
		return p.docs.Store(ctx, doc)
	})
}

// RequeueCount returns how many times ev has been requeued.
func RequeueCount(ev domain.Event) int {
	switch v := ev.Metadata[MetaRequeueCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
