package control

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/vietddude/harvester/internal/core/config"
	"github.com/vietddude/harvester/internal/infra/fetch"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
	"github.com/vietddude/harvester/internal/infra/text"
	"github.com/vietddude/harvester/internal/processing/health"
	"github.com/vietddude/harvester/internal/processing/nodes"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/resilience"
	"github.com/vietddude/harvester/internal/processing/worker"
)

// App is the main application struct that manages the worker lifecycle.
type App struct {
	cfg        config.AppConfig
	backends   *Backends
	registry   *pipeline.Registry
	pool       *worker.Pool
	sweeper    *worker.Sweeper
	healthMon  *health.Monitor
	httpServer *health.Server
	grpcServer *health.GRPCServer
	log        *slog.Logger

	cancel context.CancelFunc
	done   chan error
}

// NewClassifier returns the classifier with every backend's error mappings registered.
func NewClassifier(logger *slog.Logger) *resilience.Classifier {
	c := resilience.DefaultClassifier(logger)
	fetch.RegisterErrors(c)
	postgres.RegisterErrors(c)
	redisclient.RegisterErrors(c)
	return c
}

// NewRegistry builds the node catalog and every configured pipeline.
func NewRegistry(cfg config.AppConfig, classifier *resilience.Classifier, logger *slog.Logger) (*pipeline.Registry, error) {
	deps := nodes.Deps{
		Cleaner: text.NewNormalizer(cfg.Text, logger),
		Logger:  logger,
	}
	if cfg.Fetch.BaseURL != "" {
		policy := cfg.RetryPolicy("fetch transcript")
		policy.RetryOn = fetch.Retryable
		deps.Fetcher = fetch.NewHTTPFetcher(cfg.Fetch)
		deps.FetchGuard = resilience.Standard(resilience.NewRateLimiter(cfg.Fetch.RateLimit), policy, classifier, policy.Context)
	}

	catalog := pipeline.NewCatalog()
	nodes.Register(catalog, deps)
	return buildRegistry(cfg, catalog, classifier, logger)
}

// buildRegistry builds every configured pipeline with each node execution
// guarded by rate limiting, retry and classification.
func buildRegistry(cfg config.AppConfig, catalog *pipeline.Catalog, classifier *resilience.Classifier, logger *slog.Logger) (*pipeline.Registry, error) {
	policy := cfg.RetryPolicy("pipeline node")
	policy.RetryOn = classifier.Transient
	guard := resilience.Standard(resilience.NewRateLimiter(cfg.Resilience.RateLimit), policy, classifier, policy.Context)

	return pipeline.NewRegistryFromSchemas(
		cfg.TypeFunc(),
		cfg.Pipelines,
		catalog,
		pipeline.WithLogger(logger),
		pipeline.WithTracer(otel.Tracer("github.com/vietddude/harvester")),
		pipeline.WithMiddleware(guard),
	)
}

// NewApp creates a new App instance with all dependencies initialized.
func NewApp(ctx context.Context, cfg config.AppConfig) (*App, error) {
	logger := slog.Default()
	classifier := NewClassifier(logger)

	// 1. Pipelines first so a bad schema fails before any connection is made
	registry, err := NewRegistry(cfg, classifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipelines: %w", err)
	}
	logger.Info("Pipelines registered", "types", registry.Types())

	// 2. Stores and queue
	backends, err := OpenBackends(ctx, cfg, cfg.Worker.OriginService)
	if err != nil {
		return nil, err
	}

	// 3. Worker
	storePolicy := cfg.RetryPolicy("document store")
	storePolicy.RetryOn = postgres.Retryable
	guard := resilience.Standard(resilience.NewRateLimiter(cfg.Resilience.RateLimit), storePolicy, classifier, storePolicy.Context)
	queuePolicy := cfg.RetryPolicy("requeue event")
	queuePolicy.RetryOn = redisclient.Retryable
	pool := worker.NewPool(cfg.Worker, worker.Deps{
		Queue:      backends.Queue,
		Registry:   registry,
		Documents:  backends.Documents,
		Failed:     backends.Failed,
		Classifier: classifier,
		Guard:      guard,
		QueueGuard: resilience.Retry(queuePolicy, classifier),
		Logger:     logger,
	})
	sweeper := worker.NewSweeper(cfg.Worker, backends.Queue, backends.Documents, logger)

	// 4. Health
	healthMon := health.NewMonitor(backends.Queue, backends.Documents, backends.Failed, backends.Pingers(), logger)
	app := &App{
		cfg:        cfg,
		backends:   backends,
		registry:   registry,
		pool:       pool,
		sweeper:    sweeper,
		healthMon:  healthMon,
		httpServer: health.NewServer(healthMon, cfg.Server.Port),
		log:        logger,
	}
	app.httpServer.EnableEvents(worker.NewProducer(backends.Queue, backends.Documents), backends.Documents)
	if cfg.Server.GRPCPort > 0 {
		app.grpcServer = health.NewGRPCServer(healthMon, cfg.Server.GRPCPort)
	}
	return app, nil
}

// Start starts the worker pool and its supporting services.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	// Start Health Server
	go func() {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()
	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start Health Monitor Background Tasks
	go a.healthMon.Start(ctx)

	// Start DB Metrics Collector
	if a.backends.db != nil {
		a.backends.db.StartMetricsCollector(ctx)
	}

	go a.sweeper.Start(ctx)

	a.done = make(chan error, 1)
	go func() {
		a.done <- a.pool.Run(ctx)
	}()
	return nil
}

// Stop drains the worker pool and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping harvester...")

	if a.cancel != nil {
		a.cancel()
	}
	if a.done != nil {
		select {
		case err := <-a.done:
			if err != nil {
				a.log.Warn("Worker pool exited with error", "error", err)
			}
		case <-ctx.Done():
			a.log.Warn("Worker pool did not stop in time")
		}
	}

	if a.grpcServer != nil {
		a.grpcServer.Stop(ctx)
	}
	if err := a.backends.Close(); err != nil {
		a.log.Warn("Failed to close backends", "error", err)
	}

	// Stop Health Server
	return a.httpServer.Stop(ctx)
}
