package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/metrics"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

const tracerName = "github.com/vietddude/harvester/internal/processing/pipeline"

var (
	// ErrNotRouter is returned when a node declared as a router lacks the capability.
	ErrNotRouter = errors.New("node declared as router does not implement routing")
	// ErrUndeclaredRoute is returned when a router selects a node outside its connections.
	ErrUndeclaredRoute = errors.New("router selected an undeclared connection")
	// ErrStepLimit is returned when a run exceeds its step budget, usually a routing cycle.
	ErrStepLimit = errors.New("pipeline step limit exceeded")
)

// NextNodeKey is the key under which a router's decision is recorded.
const NextNodeKey = "next_node"

// Engine executes one pipeline schema. It is built once per pipeline type and
// reused across runs; Run may be called concurrently.
type Engine struct {
	name     string
	schema   Schema
	configs  map[string]NodeConfig
	nodes    map[string]Node
	wrap     resilience.Wrapper
	logger   *slog.Logger
	tracer   trace.Tracer
	maxSteps int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMiddleware wraps every node execution with w.
func WithMiddleware(w resilience.Wrapper) Option {
	return func(e *Engine) { e.wrap = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMaxSteps bounds the number of node executions per run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// NewEngine validates the schema and instantiates every node reachable from
// the start node exactly once.
func NewEngine(name string, schema Schema, catalog *Catalog, opts ...Option) (*Engine, error) {
	if err := Validate(schema); err != nil {
		return nil, err
	}

	e := &Engine{
		name:    name,
		schema:  schema,
		configs: make(map[string]NodeConfig, len(schema.Nodes)),
		nodes:   make(map[string]Node, len(schema.Nodes)),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("pipeline", name)

	for _, cfg := range schema.Nodes {
		e.configs[cfg.Node] = cfg
	}

	for _, id := range schema.Reachable() {
		if _, built := e.nodes[id]; built {
			continue
		}
		node, err := e.build(catalog, e.configs[id])
		if err != nil {
			return nil, err
		}
		e.nodes[id] = node
	}

	for _, cfg := range schema.Nodes {
		if _, ok := e.nodes[cfg.Node]; ok {
			continue
		}
		e.logger.Warn("Node is not reachable from start", "node", cfg.Node)
		if cfg.Router {
			// Declared routers are checked even when no path leads to them.
			if _, err := e.build(catalog, cfg); err != nil {
				return nil, err
			}
		}
	}

	if e.maxSteps <= 0 {
		e.maxSteps = 10 * len(e.nodes)
	}
	return e, nil
}

func (e *Engine) build(catalog *Catalog, cfg NodeConfig) (Node, error) {
	node, err := catalog.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", e.name, err)
	}
	if cfg.Router {
		if _, ok := node.(Router); !ok {
			return nil, failure.Configuration(
				fmt.Sprintf("pipeline %q: node %q is declared as a router", e.name, cfg.Node),
				fmt.Errorf("%w: %s (%T)", ErrNotRouter, cfg.Node, node),
			)
		}
	}
	return node, nil
}

// Name returns the pipeline type this engine serves.
func (e *Engine) Name() string {
	return e.name
}

// Schema returns the schema the engine was built from.
func (e *Engine) Schema() Schema {
	return e.schema
}

// Node returns the singleton instance for id.
func (e *Engine) Node(id string) (Node, bool) {
	n, ok := e.nodes[id]
	return n, ok
}

// Run executes the pipeline for one event. Node failures abort the run and
// are returned unchanged; the partially filled context is returned with them.
func (e *Engine) Run(ctx context.Context, ev domain.Event) (*domain.TaskContext, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.name", e.name),
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.Type),
	))
	defer span.End()

	start := time.Now()
	tc := domain.NewTaskContext(ev)

	current := e.schema.Start
	for steps := 0; current != ""; steps++ {
		if steps >= e.maxSteps {
			err := failure.Processing(
				fmt.Sprintf("pipeline %q aborted at node %q", e.name, current),
				fmt.Errorf("%w: %d steps", ErrStepLimit, e.maxSteps),
			).WithDetail("event_id", ev.ID)
			e.fail(span, start, err)
			return tc, err
		}

		next, err := e.execute(ctx, current, tc)
		if err != nil {
			e.fail(span, start, err)
			return tc, err
		}
		current = next
	}

	metrics.PipelineRunsTotal.WithLabelValues(e.name, "success").Inc()
	metrics.PipelineRunDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())
	return tc, nil
}

func (e *Engine) fail(span trace.Span, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.PipelineRunsTotal.WithLabelValues(e.name, "failure").Inc()
	metrics.PipelineRunDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())
}

// execute runs one node inside a scoped span and returns the next node id.
func (e *Engine) execute(ctx context.Context, id string, tc *domain.TaskContext) (next string, err error) {
	node := e.nodes[id]
	cfg := e.configs[id]

	ctx, span := e.tracer.Start(ctx, "pipeline.node", trace.WithAttributes(
		attribute.String("pipeline.name", e.name),
		attribute.String("node.id", id),
	))
	start := time.Now()
	e.logger.Info("Starting node", "node", id, "event_id", tc.Event.ID)

	defer func() {
		elapsed := time.Since(start)
		metrics.NodeDuration.WithLabelValues(e.name, id).Observe(elapsed.Seconds())
		if err != nil {
			metrics.NodeErrorsTotal.WithLabelValues(e.name, id).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("Node execution failed", "node", id, "event_id", tc.Event.ID, "error", err)
		}
		e.logger.Info("Finished node", "node", id, "event_id", tc.Event.ID, "duration", elapsed)
		span.End()
	}()

	op := func(ctx context.Context) error { return node.Process(ctx, tc) }
	if e.wrap != nil {
		op = e.wrap(op)
	}
	if err := op(ctx); err != nil {
		return "", err
	}

	switch {
	case len(cfg.Connections) == 0:
		return "", nil
	case cfg.Router:
		return e.route(ctx, id, node.(Router), cfg, tc)
	default:
		return cfg.Connections[0], nil
	}
}

func (e *Engine) route(ctx context.Context, id string, r Router, cfg NodeConfig, tc *domain.TaskContext) (string, error) {
	candidates := make([]Candidate, 0, len(cfg.Connections))
	for _, target := range cfg.Connections {
		candidates = append(candidates, Candidate{ID: target, Node: e.nodes[target]})
	}

	next, err := r.Route(ctx, tc, candidates)
	if err != nil {
		return "", err
	}
	if next != "" && !slices.Contains(cfg.Connections, next) {
		return "", failure.Configuration(
			fmt.Sprintf("router %q returned %q", id, next),
			ErrUndeclaredRoute,
		)
	}

	recordDecision(tc, id, next)
	if next == "" {
		e.logger.Info("Router matched no candidate, ending run", "node", id, "event_id", tc.Event.ID)
	}
	return next, nil
}

func recordDecision(tc *domain.TaskContext, id, next string) {
	var decision any
	if next != "" {
		decision = next
	}
	if out, ok := tc.OutputMap(id); ok {
		out[NextNodeKey] = decision
		return
	}
	tc.SetOutput(id, map[string]any{NextNodeKey: decision})
}
