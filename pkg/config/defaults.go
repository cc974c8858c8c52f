package config

// Defaults contains system-wide default configuration not owned by a
// single registry.
type Defaults struct {
	// SelectionStrategy names a provider-selection strategy ("weighted",
	// "best-health", "round-robin"); the loader defaults it to "weighted".
	// The LLM pool does not read it: each caller picks its own selector.
	SelectionStrategy string `yaml:"selection_strategy,omitempty"`

	// IngressTokenEnv names the environment variable holding the bearer
	// token required on incoming /v2 requests.
	IngressTokenEnv string `yaml:"ingress_token_env,omitempty"`

	// TraceCollectorURLEnv names the environment variable for an
	// OpenTelemetry/Phoenix collector endpoint; the loader defaults it to
	// "TRACE_COLLECTOR_URL". Nothing reads that variable and no tracing is
	// performed.
	TraceCollectorURLEnv string `yaml:"trace_collector_url_env,omitempty"`
}
