// Package worker runs planner jobs delivered over Pub/Sub: optimizing every
// day of a stored trip and regenerating a single day.
package worker

import (
	"os"
	"strconv"
	"time"
)

// Job types understood by the processor.
const (
	JobOptimizeTrip  = "optimize_trip"
	JobRegenerateDay = "regenerate_day"
)

// Config holds configuration for the job processor and its subscription.
type Config struct {
	// ProjectID and Subscription identify the Pub/Sub subscription.
	ProjectID    string
	Subscription string

	// Concurrency is the number of days optimized in parallel within one
	// optimize_trip job.
	// Default: 3
	Concurrency int

	// JobTimeout bounds one job.
	// Default: 2 minutes
	JobTimeout time.Duration

	// MaxOutstandingMessages caps in-flight Pub/Sub messages.
	// Default: 10
	MaxOutstandingMessages int
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:            3,
		JobTimeout:             2 * time.Minute,
		MaxOutstandingMessages: 10,
	}
}

// ConfigFromEnv reads PUBSUB_PROJECT_ID, PUBSUB_SUBSCRIPTION,
// WORKER_CONCURRENCY and WORKER_JOB_TIMEOUT over DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	cfg.Subscription = os.Getenv("PUBSUB_SUBSCRIPTION")
	if n, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && n > 0 {
		cfg.Concurrency = n
	}
	if d, err := time.ParseDuration(os.Getenv("WORKER_JOB_TIMEOUT")); err == nil && d > 0 {
		cfg.JobTimeout = d
	}
	return cfg
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = def.MaxOutstandingMessages
	}
	return c
}
