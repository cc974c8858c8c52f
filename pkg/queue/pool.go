package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
)

// WorkerPool manages a pool of workers draining a single queue table.
type WorkerPool struct {
	podID     string
	queueName string
	store     *Store
	config    *config.QueueConfig
	executor  Executor
	workers   []*Worker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	started   bool

	orphans orphanState
}

// NewWorkerPool creates a worker pool for one named queue (e.g.
// "discovery" or "profile"), backed by store and executor.
func NewWorkerPool(podID, queueName string, store *Store, cfg *config.QueueConfig, executor Executor) *WorkerPool {
	return &WorkerPool{
		podID:     podID,
		queueName: queueName,
		store:     store,
		config:    cfg,
		executor:  executor,
		workers:   make([]*Worker, 0, cfg.WorkerCount),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call",
			"pod_id", p.podID, "queue", p.queueName)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool",
		"pod_id", p.podID, "queue", p.queueName, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-%s-worker-%d", p.podID, p.queueName, i)
		worker := NewWorker(workerID, p.podID, p.store, p.config, p.executor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("worker pool started", "queue", p.queueName)
	return nil
}

// Stop signals all workers to stop and waits for them to finish. Workers
// finish their current job before exiting (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully", "queue", p.queueName)

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped gracefully", "queue", p.queueName)
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	metrics, err := p.store.GetMetrics(ctx)
	dbHealthy := err == nil
	var dbError string
	if err != nil {
		dbError = fmt.Sprintf("metrics query failed: %v", err)
		slog.Error("failed to query queue metrics for health check",
			"pod_id", p.podID, "queue", p.queueName, "error", err)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	isHealthy := len(p.workers) > 0 && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		QueueName:        p.queueName,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		Metrics:          metrics,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}
