// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/harvester/internal/core/domain"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of probing one backing service.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Report contains the full system health report.
type Report struct {
	Status       SystemStatus                  `json:"status"`
	QueueDepth   int                           `json:"queue_depth"`
	FailedEvents int                           `json:"failed_events"`
	Documents    map[domain.DocumentStatus]int `json:"documents"`
	Components   map[string]ComponentHealth    `json:"components"`
	CheckedAt    time.Time                     `json:"checked_at"`
}
