package config

import "time"

// SearchConfig tunes the pooled SERP search client: the rate-limiter/
// connection-semaphore admission gates, timeouts, and retry policy.
// Grounded on the original system's concurrency section (rate_per_second,
// max_burst, max_concurrent, request/connect timeouts, retry budget).
type SearchConfig struct {
	Endpoint    string `yaml:"endpoint"`
	APIKeyEnv   string `yaml:"api_key_env"`

	// RatePerSecond and MaxBurst configure the token bucket shaping request rate.
	RatePerSecond float64 `yaml:"rate_per_second"`
	MaxBurst      int     `yaml:"max_burst"`

	// MaxConcurrent bounds in-flight requests independent of the rate limiter.
	MaxConcurrent int `yaml:"max_concurrent"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	MaxRetries      int           `yaml:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay"`
	RetryJitter     time.Duration `yaml:"retry_jitter"`
	RetryAfterMax   time.Duration `yaml:"retry_after_max"`

	RateLimiterTimeout       time.Duration `yaml:"rate_limiter_timeout"`
	ConnectionSemaphoreTimeout time.Duration `yaml:"connection_semaphore_timeout"`

	// CacheTTL controls how long a per-query result set is cached in-process.
	// Zero disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultSearchConfig returns defaults grounded on the original SerperManager's
// tunables, translated 1:1 from its documented constants.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		RatePerSecond:              190.0,
		MaxBurst:                   200,
		MaxConcurrent:              1000,
		RequestTimeout:             15 * time.Second,
		ConnectTimeout:             5 * time.Second,
		MaxRetries:                 3,
		RetryBaseDelay:             1 * time.Second,
		RetryMaxDelay:              10 * time.Second,
		RetryJitter:                2 * time.Second,
		RetryAfterMax:              60 * time.Second,
		RateLimiterTimeout:         10 * time.Second,
		ConnectionSemaphoreTimeout: 10 * time.Second,
		CacheTTL:                   10 * time.Minute,
	}
}
