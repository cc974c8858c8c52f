// Package queue provides a durable Postgres-backed job queue and the
// worker pool that drains it. Two queues share this package: discovery
// (resolve a company's website) and profile (scrape and extract a
// company profile), each with its own table but identical semantics.
package queue

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no claimable jobs are in the queue.
	ErrNoJobsAvailable = errors.New("no jobs available")
)

// Job is a single claimed row from either queue table.
type Job struct {
	ID          int64
	CompanyID   string
	Status      string
	Attempts    int
	MaxAttempts int
	AvailableAt time.Time
	LockedAt    *time.Time
	LockedBy    *string
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job status values. Every queue table uses the same vocabulary.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Executor runs a single job to completion. It owns the entire job
// lifecycle: reading whatever upstream data the stage needs, doing the
// work, and persisting the stage's output. The worker only handles
// claiming, heartbeat, and ack/fail bookkeeping.
type Executor interface {
	Execute(ctx context.Context, job *Job) error
}

// Metrics summarizes queue depth for health reporting.
type Metrics struct {
	QueuedCount         int      `json:"queued_count"`
	ProcessingCount     int      `json:"processing_count"`
	FailedCount         int      `json:"failed_count"`
	OldestJobAgeSeconds *float64 `json:"oldest_job_age_seconds,omitempty"`
}

// PoolHealth contains health information for an entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	QueueName        string         `json:"queue_name"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	Metrics          Metrics        `json:"metrics"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  int64     `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
