package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// QueueYAMLConfig represents the queue.yaml file structure: independent
// tuning for the discovery and profile queues, each merged over
// DefaultQueueConfig.
type QueueYAMLConfig struct {
	Defaults  *Defaults    `yaml:"defaults"`
	Discovery *QueueConfig `yaml:"discovery"`
	Profile   *QueueConfig `yaml:"profile"`
	Search    *SearchConfig `yaml:"search"`
}

// ProvidersJSONConfig represents the providers.json file structure, named
// after the original system's llm_limits.json.
type ProvidersJSONConfig struct {
	Providers map[string]*ProviderConfig `json:"providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load queue.yaml and providers.json from configDir
//  2. Expand environment variables in both files
//  3. Parse into structs
//  4. Merge user-provided queue/search tuning over built-in defaults
//  5. Build the provider registry
//  6. Apply default values
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized", "providers", stats.Providers)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	queueYAML, err := loader.loadQueueYAML()
	if err != nil {
		return nil, NewLoadError("queue.yaml", err)
	}

	providers, err := loader.loadProvidersJSON()
	if err != nil {
		return nil, NewLoadError("providers.json", err)
	}

	discoveryQueue := DefaultQueueConfig()
	if queueYAML.Discovery != nil {
		if err := mergo.Merge(discoveryQueue, queueYAML.Discovery, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return nil, fmt.Errorf("failed to merge discovery queue config: %w", err)
		}
	}

	profileQueue := DefaultQueueConfig()
	if queueYAML.Profile != nil {
		if err := mergo.Merge(profileQueue, queueYAML.Profile, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return nil, fmt.Errorf("failed to merge profile queue config: %w", err)
		}
	}

	searchConfig := DefaultSearchConfig()
	if queueYAML.Search != nil {
		if err := mergo.Merge(searchConfig, queueYAML.Search, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return nil, fmt.Errorf("failed to merge search config: %w", err)
		}
	}

	defaults := queueYAML.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.SelectionStrategy == "" {
		defaults.SelectionStrategy = "weighted"
	}
	if defaults.IngressTokenEnv == "" {
		defaults.IngressTokenEnv = "API_ACCESS_TOKEN"
	}
	if defaults.TraceCollectorURLEnv == "" {
		defaults.TraceCollectorURLEnv = "TRACE_COLLECTOR_URL"
	}

	return &Config{
		configDir:        configDir,
		Defaults:         defaults,
		DiscoveryQueue:   discoveryQueue,
		ProfileQueue:     profileQueue,
		Search:           searchConfig,
		ProviderRegistry: NewProviderRegistry(providers.Providers),
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) readExpanded(filename string) ([]byte, error) {
	path := filepath.Join(l.configDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	return ExpandEnv(data), nil
}

func (l *configLoader) loadQueueYAML() (*QueueYAMLConfig, error) {
	// Sections start from the built-in defaults, so a key absent from
	// queue.yaml keeps its default while a key present, even as zero,
	// replaces it (and is then checked by the validator).
	cfg := QueueYAMLConfig{
		Discovery: DefaultQueueConfig(),
		Profile:   DefaultQueueConfig(),
		Search:    DefaultSearchConfig(),
	}
	data, err := l.readExpanded("queue.yaml")
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			// No user tuning file: run entirely on built-in defaults.
			return &cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

func (l *configLoader) loadProvidersJSON() (*ProvidersJSONConfig, error) {
	cfg := &ProvidersJSONConfig{Providers: make(map[string]*ProviderConfig)}
	data, err := l.readExpanded("providers.json")
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return cfg, nil
		}
		return nil, err
	}
	if err := sonic.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	return cfg, nil
}
