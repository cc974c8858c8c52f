package config

import "time"

// QueueConfig contains queue and worker pool configuration, shared by the
// discovery queue and the profile queue (each gets its own *QueueConfig
// instance, typically identical).
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per process.
	// Each worker independently polls and claims jobs.
	WorkerCount int `yaml:"worker_count"`

	// MaxAttempts is validated at load time but not read by the queue
	// store: the failure cap is each row's max_attempts column (default 5),
	// counted in failures rather than claims.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffUnit is validated at load time but not read by the queue
	// store: Store.Fail sets available_at = now() + attempts*30s.
	BackoffUnit time.Duration `yaml:"backoff_unit"`

	// PollInterval is the base interval between claim attempts when idle.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// JobTimeout bounds how long a single job execution may run before its
	// context is cancelled.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// GracefulShutdownTimeout is the max time to wait for in-flight jobs to
	// complete during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for stale locked jobs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a job can sit locked without a heartbeat
	// before it is considered orphaned and released back to the queue.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults, grounded on the
// original system's linear backoff (attempts*30s) and a 5-attempt cap.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxAttempts:             5,
		BackoffUnit:             30 * time.Second,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              10 * time.Minute,
		GracefulShutdownTimeout: 10 * time.Minute,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
	}
}
