package config

// Config is the umbrella configuration object encapsulating all registries
// and defaults. Returned by Initialize and threaded through the rest of the
// application.
type Config struct {
	configDir string

	Defaults *Defaults

	// DiscoveryQueue and ProfileQueue are configured independently (though
	// typically identical) since each backs its own worker pool.
	DiscoveryQueue *QueueConfig
	ProfileQueue   *QueueConfig

	Search *SearchConfig

	ProviderRegistry *ProviderRegistry
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration, logged by
// Initialize once loading succeeds.
type ConfigStats struct {
	Providers int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Providers: c.ProviderRegistry.Len(),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider retrieves an LLM provider configuration by name.
func (c *Config) GetProvider(name string) (*ProviderConfig, error) {
	return c.ProviderRegistry.Get(name)
}
