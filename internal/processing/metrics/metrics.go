package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsTotal tracks finished pipeline runs per pipeline type and outcome
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"pipeline", "outcome"},
	)

	// PipelineRunDuration tracks end-to-end run latency
	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)

	// NodeDuration tracks per-node execution latency
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_node_duration_seconds",
			Help:    "Node execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "node"},
	)

	// NodeErrorsTotal tracks node failures
	NodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_node_errors_total",
			Help: "Total number of node execution failures",
		},
		[]string{"pipeline", "node"},
	)

	// RetriesTotal tracks retry attempts scheduled by the middleware
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_retries_total",
			Help: "Total number of retries scheduled",
		},
		[]string{"context"},
	)

	// RetryExhaustedTotal tracks retry loops that ran out of attempts
	RetryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_retry_exhausted_total",
			Help: "Total number of exhausted retry loops",
		},
		[]string{"context"},
	)

	// ErrorsClassified tracks handled errors by kind and code
	ErrorsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_classified_total",
			Help: "Total number of classified errors",
		},
		[]string{"kind", "code"},
	)

	// EventsProcessed tracks events consumed by the worker pool
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_events_processed_total",
			Help: "Total number of events consumed from the queue",
		},
		[]string{"outcome"},
	)

	// QueueDepth tracks the number of events waiting on the work queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_queue_depth",
			Help: "Number of events waiting on the work queue",
		},
	)

	// FailedEvents tracks the number of parked failed events
	FailedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_failed_events",
			Help: "Number of events parked after failing",
		},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
