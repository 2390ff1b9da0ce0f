package config

import (
	"time"

	"github.com/vietddude/harvester/internal/infra/fetch"
	redisclient "github.com/vietddude/harvester/internal/infra/redis"
	"github.com/vietddude/harvester/internal/infra/storage/postgres"
	"github.com/vietddude/harvester/internal/infra/text"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/worker"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig               `yaml:"server"`
	Logging    LoggingConfig              `yaml:"logging"`
	Redis      redisclient.Config         `yaml:"redis"`
	Database   postgres.Config            `yaml:"database"`
	Worker     worker.Config              `yaml:"worker"`
	Resilience ResilienceConfig           `yaml:"resilience"`
	Fetch      fetch.Config               `yaml:"fetch"`
	Text       text.Options               `yaml:"text"`
	Routing    RoutingConfig              `yaml:"routing"`
	Pipelines  map[string]pipeline.Schema `yaml:"pipelines"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ResilienceConfig holds the retry and rate limit settings applied to
// collaborator calls.
type ResilienceConfig struct {
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	ExponentialBackoff *bool         `yaml:"exponential_backoff"`
	RateLimit          time.Duration `yaml:"rate_limit"` // minimum gap between store calls
}

// Routing strategies.
const (
	RoutingEventType    = "event_type"
	RoutingPayloadField = "payload_field"
)

// RoutingConfig selects how events are mapped to pipeline types.
type RoutingConfig struct {
	Strategy string            `yaml:"strategy"` // event_type, payload_field
	Field    string            `yaml:"field"`
	Mapping  map[string]string `yaml:"mapping"`
	Default  string            `yaml:"default"`
}
