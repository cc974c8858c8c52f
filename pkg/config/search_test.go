package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSearchConfig(t *testing.T) {
	cfg := DefaultSearchConfig()

	assert.Equal(t, 190.0, cfg.RatePerSecond)
	assert.Equal(t, 200, cfg.MaxBurst)
	assert.Equal(t, 1000, cfg.MaxConcurrent)
	assert.Equal(t, 3, cfg.MaxRetries)
}
