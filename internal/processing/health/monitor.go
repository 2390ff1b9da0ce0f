package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
	"github.com/vietddude/harvester/internal/processing/metrics"
)

// DepthReader reports the number of events waiting on the work queue.
type DepthReader interface {
	Depth(ctx context.Context) (int, error)
}

// Pinger is a backing service that can be probed.
type Pinger interface {
	Health(ctx context.Context) error
}

// Thresholds decide when the system is degraded or critical.
type Thresholds struct {
	DegradedQueueDepth int
	CriticalQueueDepth int
	CriticalFailed     int
}

// DefaultThresholds returns the default status thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DegradedQueueDepth: 1000,
		CriticalQueueDepth: 10000,
		CriticalFailed:     100,
	}
}

// Monitor aggregates health status from the queue, the stores and their backends.
type Monitor struct {
	queue      DepthReader
	docs       storage.DocumentRepository
	failed     storage.FailedEventRepository
	components map[string]Pinger
	thresholds Thresholds
	log        *slog.Logger

	mu         sync.RWMutex
	lastCheck  time.Time
	lastReport *Report
	listeners  []func(SystemStatus)
}

// NewMonitor creates a new health monitor. Any collaborator may be nil.
func NewMonitor(
	queue DepthReader,
	docs storage.DocumentRepository,
	failed storage.FailedEventRepository,
	components map[string]Pinger,
	logger *slog.Logger,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		queue:      queue,
		docs:       docs,
		failed:     failed,
		components: components,
		thresholds: DefaultThresholds(),
		log:        logger.With("component", "health"),
	}
}

// SetThresholds overrides the default thresholds.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
}

// OnStatusChange registers fn to be called with every refreshed status.
func (m *Monitor) OnStatusChange(fn func(SystemStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start refreshes the report and the gauges periodically until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	m.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

func (m *Monitor) refresh(ctx context.Context) {
	report := m.Check(ctx)

	metrics.QueueDepth.Set(float64(report.QueueDepth))
	metrics.FailedEvents.Set(float64(report.FailedEvents))

	m.mu.RLock()
	listeners := m.listeners
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(report.Status)
	}
	if report.Status != StatusHealthy {
		m.log.Warn("System unhealthy", "status", report.Status, "queue_depth", report.QueueDepth, "failed_events", report.FailedEvents)
	}
}

// CheckHealth returns the cached report when it is less than 10s old.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.RLock()
	if m.lastReport != nil && time.Since(m.lastCheck) < 10*time.Second {
		report := *m.lastReport
		m.mu.RUnlock()
		return report
	}
	m.mu.RUnlock()
	return m.Check(ctx)
}

// Check probes every collaborator and caches the result.
func (m *Monitor) Check(ctx context.Context) Report {
	report := Report{
		Status:     StatusHealthy,
		Components: make(map[string]ComponentHealth),
		CheckedAt:  time.Now(),
	}

	// 1. Backends
	for name, p := range m.components {
		if err := p.Health(ctx); err != nil {
			report.Components[name] = ComponentHealth{Status: StatusCritical, Error: err.Error()}
			report.Status = StatusCritical
			continue
		}
		report.Components[name] = ComponentHealth{Status: StatusHealthy}
	}

	// 2. Queue depth
	if m.queue != nil {
		if depth, err := m.queue.Depth(ctx); err == nil {
			report.QueueDepth = depth
		} else {
			report.Status = worst(report.Status, StatusDegraded)
		}
	}

	// 3. Failed events
	if m.failed != nil {
		if count, err := m.failed.Count(ctx); err == nil {
			report.FailedEvents = count
		}
	}

	// 4. Documents
	if m.docs != nil {
		if counts, err := m.docs.CountByStatus(ctx); err == nil {
			report.Documents = counts
		}
	}

	m.mu.Lock()
	t := m.thresholds
	switch {
	case report.QueueDepth > t.CriticalQueueDepth || report.FailedEvents > t.CriticalFailed:
		report.Status = StatusCritical
	case report.QueueDepth > t.DegradedQueueDepth || report.FailedEvents > 0:
		report.Status = worst(report.Status, StatusDegraded)
	}
	m.lastCheck = report.CheckedAt
	m.lastReport = &report
	m.mu.Unlock()

	return report
}

// FailedEvents returns the parked events.
func (m *Monitor) FailedEvents(ctx context.Context) ([]*domain.FailedEvent, error) {
	if m.failed == nil {
		return nil, nil
	}
	return m.failed.GetAll(ctx)
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
