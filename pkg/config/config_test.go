package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStats(t *testing.T) {
	cfg := validConfig()
	stats := cfg.Stats()
	assert.Equal(t, 2, stats.Providers)
}

func TestConfigGetProvider(t *testing.T) {
	cfg := validConfig()
	p, err := cfg.GetProvider("openai-primary")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.Model)
}
