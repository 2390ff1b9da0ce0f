package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/harvester/internal/core/failure"
	"github.com/vietddude/harvester/internal/processing/pipeline"
	"github.com/vietddude/harvester/internal/processing/resilience"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.New(failure.KindConfiguration, failure.CodeConfigMissing,
			"failed to read config file", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, expanding environment variables
// and applying defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, failure.Configuration("failed to parse config file", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Redis.Queue == "" {
		c.Redis.Queue = "raw_data_queue"
	}
	if c.Redis.FailedPrefix == "" {
		c.Redis.FailedPrefix = "harvester"
	}

	// Same defaults as the retry middleware
	if c.Resilience.MaxRetries == 0 {
		c.Resilience.MaxRetries = resilience.DefaultRetryPolicy.Attempts
	}
	if c.Resilience.RetryDelay == 0 {
		c.Resilience.RetryDelay = resilience.DefaultRetryPolicy.BaseDelay
	}
	if c.Resilience.MaxDelay == 0 {
		c.Resilience.MaxDelay = resilience.DefaultRetryPolicy.MaxDelay
	}
	if c.Resilience.ExponentialBackoff == nil {
		exp := resilience.DefaultRetryPolicy.Exponential
		c.Resilience.ExponentialBackoff = &exp
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
}

func (c *AppConfig) validate() error {
	switch c.Routing.Strategy {
	case "":
		return failure.New(failure.KindConfiguration, failure.CodeConfigMissing,
			"routing.strategy is required to select a pipeline for each event", nil)
	case RoutingEventType:
	case RoutingPayloadField:
		if c.Routing.Field == "" {
			return failure.New(failure.KindConfiguration, failure.CodeConfigMissing,
				"routing.field is required for the payload_field strategy", nil)
		}
	default:
		return failure.Configuration(fmt.Sprintf("unknown routing strategy %q", c.Routing.Strategy), nil)
	}
	if c.Resilience.MaxRetries < 1 {
		return failure.Configuration("resilience.max_retries must be at least 1", nil)
	}
	return nil
}

// RetryPolicy builds the retry policy described by the resilience section.
func (c *AppConfig) RetryPolicy(context string) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		Attempts:    c.Resilience.MaxRetries,
		BaseDelay:   c.Resilience.RetryDelay,
		MaxDelay:    c.Resilience.MaxDelay,
		Exponential: c.Resilience.ExponentialBackoff == nil || *c.Resilience.ExponentialBackoff,
		Context:     context,
	}
}

// TypeFunc builds the pipeline type function selected by the routing section.
func (c *AppConfig) TypeFunc() pipeline.TypeFunc {
	if c.Routing.Strategy == RoutingPayloadField {
		return pipeline.ByPayloadField(c.Routing.Field, c.Routing.Mapping, c.Routing.Default)
	}
	return pipeline.ByEventType(c.Routing.Mapping, c.Routing.Default)
}
