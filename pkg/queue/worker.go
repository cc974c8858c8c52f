package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes jobs from
// one queue table.
type Worker struct {
	id       string
	podID    string
	store    *Store
	config   *config.QueueConfig
	executor Executor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  int64
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new queue worker bound to store.
func NewWorker(id, podID string, store *Store, cfg *config.QueueConfig, executor Executor) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        store,
		config:       cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// livenessLogInterval is how many consecutive empty poll cycles (no job
// claimed) elapse between liveness log lines. At the default 1s (±0.5s)
// poll interval this is roughly once every 30 seconds.
const livenessLogInterval = 30

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	emptyCycles := 0

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) {
					emptyCycles++
					if emptyCycles%livenessLogInterval == 0 {
						w.logLiveness(ctx, log, emptyCycles)
					}
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
				continue
			}
			emptyCycles = 0
		}
	}
}

// logLiveness emits an Info line with current queue counts, so an idle
// worker still shows up in logs rather than going silent between jobs.
func (w *Worker) logLiveness(ctx context.Context, log *slog.Logger, emptyCycles int) {
	metrics, err := w.store.GetMetrics(ctx)
	if err != nil {
		log.Warn("liveness check: failed to read queue metrics", "error", err)
		return
	}
	log.Info("worker idle, queue alive",
		"empty_cycles", emptyCycles,
		"queued", metrics.QueuedCount,
		"processing", metrics.ProcessingCount,
		"failed", metrics.FailedCount,
	)
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims a single job, runs it through the executor, and
// acks or fails it depending on the outcome.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	jobs, err := w.store.Claim(ctx, w.id, 1)
	if err != nil {
		return err
	}
	job := jobs[0]

	log := slog.With("job_id", job.ID, "company_id", job.CompanyID, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.ID)

	execErr := w.executor.Execute(jobCtx, job)
	cancelHeartbeat()

	// Terminal bookkeeping always uses a background context: jobCtx may
	// already be cancelled (timeout) by the time we need to record the
	// outcome.
	ackCtx := context.Background()
	if execErr != nil {
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			execErr = fmt.Errorf("job timed out after %v: %w", w.config.JobTimeout, execErr)
		}
		if failErr := w.store.Fail(ackCtx, job.ID, execErr.Error()); failErr != nil {
			log.Error("failed to record job failure", "error", failErr)
			return failErr
		}
		log.Warn("job failed", "error", execErr)
	} else {
		if ackErr := w.store.Ack(ackCtx, job.ID); ackErr != nil {
			log.Error("failed to ack job", "error", ackErr)
			return ackErr
		}
		log.Info("job completed")
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	return nil
}

// runHeartbeat periodically refreshes locked_at for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, jobID int64) {
	interval := w.config.JobTimeout / 4
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID); err != nil {
				slog.Warn("heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
