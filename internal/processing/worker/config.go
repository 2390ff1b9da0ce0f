package worker

import "time"

// Config holds the worker pool settings.
type Config struct {
	Concurrency    int           `yaml:"concurrency"`
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"`
	// MaxRequeue bounds how often a transient failure is put back on the queue.
	MaxRequeue    int           `yaml:"max_requeue"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepBatch    int           `yaml:"sweep_batch"`
	// StaleAfter is how long a document may stay pending before it is re-enqueued.
	StaleAfter    time.Duration `yaml:"stale_after"`
	OriginService string        `yaml:"origin_service"`
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:    4,
		DequeueTimeout: 5 * time.Second,
		MaxRequeue:     3,
		SweepInterval:  time.Minute,
		SweepBatch:     100,
		StaleAfter:     10 * time.Minute,
		OriginService:  "harvester",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = d.DequeueTimeout
	}
	if c.MaxRequeue < 0 {
		c.MaxRequeue = 0
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = d.SweepBatch
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.OriginService == "" {
		c.OriginService = d.OriginService
	}
	return c
}
