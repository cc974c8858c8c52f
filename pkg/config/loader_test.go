package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitializeWithNoFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DiscoveryQueue.WorkerCount)
	assert.Equal(t, "weighted", cfg.Defaults.SelectionStrategy)
	assert.Equal(t, 0, cfg.ProviderRegistry.Len())
}

func TestInitializeMergesQueueYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "queue.yaml", `
discovery:
  worker_count: 8
profile:
  max_attempts: 3
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.DiscoveryQueue.WorkerCount)
	assert.Equal(t, 3, cfg.ProfileQueue.MaxAttempts)
	// Unset fields still take the built-in default.
	assert.Equal(t, 5, cfg.ProfileQueue.WorkerCount)
}

func TestInitializeLoadsProvidersJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "providers.json", `{
  "providers": {
    "openai-primary": {
      "name": "openai-primary",
      "endpoint": "https://api.openai.com/v1",
      "model": "gpt-4o-mini",
      "max_concurrent": 50,
      "weight": 10,
      "priority": 2,
      "timeout": 90000000000,
      "enabled": true
    }
  }
}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	p, err := cfg.GetProvider("openai-primary")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.Model)
}

func TestInitializeRejectsInvalidQueueConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "queue.yaml", `
discovery:
  worker_count: 0
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeExpandsEnvInProvidersJSON(t *testing.T) {
	t.Setenv("TEST_PROVIDER_ENDPOINT", "https://example.test/v1")
	dir := t.TempDir()
	writeConfigFile(t, dir, "providers.json", `{
  "providers": {
    "test": {
      "name": "test",
      "endpoint": "${TEST_PROVIDER_ENDPOINT}",
      "model": "m",
      "max_concurrent": 1,
      "weight": 1,
      "priority": 1,
      "timeout": 1000000000,
      "enabled": true
    }
  }
}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	p, err := cfg.GetProvider("test")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/v1", p.Endpoint)
}
