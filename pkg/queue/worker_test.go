package queue

import (
	"testing"
	"time"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
	"github.com/stretchr/testify/assert"
)

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
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

func TestWorkerPollInterval(t *testing.T) {
	cfg := testQueueConfig()
	w := NewWorker("test-worker", "test-pod", nil, cfg, nil)

	for i := 0; i < 100; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond, "poll interval below minimum")
		assert.LessOrEqual(t, d, 1500*time.Millisecond, "poll interval above maximum")
	}
}

func TestWorkerPollIntervalNoJitter(t *testing.T) {
	cfg := testQueueConfig()
	cfg.PollIntervalJitter = 0
	w := NewWorker("test-worker", "test-pod", nil, cfg, nil)

	for i := 0; i < 10; i++ {
		d := w.pollInterval()
		assert.Equal(t, 1*time.Second, d, "poll interval should equal base when jitter is 0")
	}
}

func TestWorkerPollIntervalWithNegativeJitter(t *testing.T) {
	cfg := testQueueConfig()
	cfg.PollInterval = 1 * time.Second
	cfg.PollIntervalJitter = -100 * time.Millisecond
	w := NewWorker("test-worker", "test-pod", nil, cfg, nil)

	// Negative jitter should be treated as zero.
	for i := 0; i < 10; i++ {
		d := w.pollInterval()
		assert.Equal(t, 1*time.Second, d)
	}
}

func TestWorkerHealth(t *testing.T) {
	cfg := testQueueConfig()
	w := NewWorker("worker-1", "pod-1", nil, cfg, nil)

	h := w.Health()
	assert.Equal(t, "worker-1", h.ID)
	assert.Equal(t, string(WorkerStatusIdle), h.Status)
	assert.Equal(t, int64(0), h.CurrentJobID)
	assert.Equal(t, 0, h.JobsProcessed)

	w.setStatus(WorkerStatusWorking, 42)
	h = w.Health()
	assert.Equal(t, string(WorkerStatusWorking), h.Status)
	assert.Equal(t, int64(42), h.CurrentJobID)

	w.setStatus(WorkerStatusIdle, 0)
	h = w.Health()
	assert.Equal(t, string(WorkerStatusIdle), h.Status)
	assert.Equal(t, int64(0), h.CurrentJobID)
}

func TestWorkerStopIdempotent(t *testing.T) {
	cfg := testQueueConfig()
	w := NewWorker("worker-1", "pod-1", nil, cfg, nil)

	assert.NotPanics(t, func() { w.Stop() })
	assert.NotPanics(t, func() { w.Stop() })
}
