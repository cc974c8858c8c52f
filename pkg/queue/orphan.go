package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for jobs stuck in processing with
// a stale lock and requeues them. All pods run this independently —
// requeuing is idempotent (a job already reclaimed by another pod simply
// won't match the WHERE clause again).
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.detectAndRecoverOrphans(ctx)
		}
	}
}

// detectAndRecoverOrphans requeues processing jobs whose lock has gone
// stale, incrementing their attempt count like an ordinary failure; unlike
// Fail, a requeued orphan is available again immediately, with no backoff.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) {
	reason := "orphaned: no heartbeat within orphan threshold"
	ids, err := p.store.RequeueStale(ctx, p.config.OrphanThreshold, reason)
	if err != nil {
		slog.Error("orphan detection failed", "queue", p.queueName, "error", err)
		return
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += len(ids)
	p.orphans.mu.Unlock()

	if len(ids) > 0 {
		slog.Warn("recovered orphaned jobs", "queue", p.queueName, "count", len(ids), "job_ids", ids)
	}
}

// CleanupStartupOrphans performs a one-time sweep of jobs left processing
// by a pod that crashed before its previous run could finish. Called once
// during startup, before the worker pool begins normal polling.
func CleanupStartupOrphans(ctx context.Context, store *Store, queueName string) error {
	ids, err := store.RequeueStale(ctx, 0, "orphaned: pod restarted while job was in progress")
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		slog.Info("recovered startup orphans", "queue", queueName, "count", len(ids), "job_ids", ids)
	}
	return nil
}
