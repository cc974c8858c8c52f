package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultQueueConfig(t *testing.T) {
	cfg := DefaultQueueConfig()

	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.BackoffUnit)
	assert.Greater(t, cfg.PollInterval, time.Duration(0))
	assert.Greater(t, cfg.OrphanDetectionInterval, time.Duration(0))
}

func TestDefaultQueueConfigIndependentInstances(t *testing.T) {
	discovery := DefaultQueueConfig()
	profile := DefaultQueueConfig()

	discovery.WorkerCount = 10

	assert.Equal(t, 5, profile.WorkerCount, "mutating one queue config must not affect another")
}
