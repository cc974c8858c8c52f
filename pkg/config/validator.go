package config

import "fmt"

// Validator performs structural validation over a loaded Config.
type Validator struct {
	cfg *Config
}

// NewValidator builds a Validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation rule, returning the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateQueue("discovery", v.cfg.DiscoveryQueue); err != nil {
		return err
	}
	if err := v.validateQueue("profile", v.cfg.ProfileQueue); err != nil {
		return err
	}
	if err := v.validateSearch(v.cfg.Search); err != nil {
		return err
	}
	return v.validateProviders()
}

func (v *Validator) validateQueue(name string, q *QueueConfig) error {
	if q.WorkerCount <= 0 {
		return NewValidationError("queue", name, "worker_count",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if q.MaxAttempts <= 0 {
		return NewValidationError("queue", name, "max_attempts",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if q.BackoffUnit <= 0 {
		return NewValidationError("queue", name, "backoff_unit",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateSearch(s *SearchConfig) error {
	if s.RatePerSecond <= 0 {
		return NewValidationError("search", "client", "rate_per_second",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.MaxConcurrent <= 0 {
		return NewValidationError("search", "client", "max_concurrent",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.RequestTimeout <= 0 {
		return NewValidationError("search", "client", "request_timeout",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateProviders() error {
	for name, p := range v.cfg.ProviderRegistry.GetAll() {
		if !p.Enabled {
			continue
		}
		if p.Endpoint == "" {
			return NewValidationError("llm_provider", name, "endpoint", ErrMissingRequiredField)
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
		if p.Weight <= 0 {
			return NewValidationError("llm_provider", name, "weight",
				fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
		if p.MaxConcurrent <= 0 {
			return NewValidationError("llm_provider", name, "max_concurrent",
				fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
		if p.Timeout <= 0 {
			return NewValidationError("llm_provider", name, "timeout",
				fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
	}
	return nil
}
