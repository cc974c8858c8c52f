package llmpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
)

// providerClient bundles everything the pool needs to call one provider:
// its static config, an API key, its own rate limiter and concurrency
// semaphore (each provider is bounded independently of the others), and
// an http.Client tuned to its timeout.
type providerClient struct {
	cfg     *config.ProviderConfig
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	sema    *semaphore.Weighted
}

// Pool is a weighted, health-scored, priority-gated pool of LLM providers
// speaking the OpenAI chat-completions wire protocol. Callers either name
// a specific provider or ask the pool to distribute count calls across the
// enabled providers by weight.
type Pool struct {
	registry *config.ProviderRegistry
	clients  map[string]*providerClient
	health   *HealthMonitor
	priority *priorityGate
}

// NewPool builds a Pool from a provider registry, skipping any provider
// whose API key environment variable is unset (mirrors the original
// add_provider's "no key, skip" behavior).
func NewPool(registry *config.ProviderRegistry) *Pool {
	p := &Pool{
		registry: registry,
		clients:  make(map[string]*providerClient),
		health:   NewHealthMonitor(),
		priority: newPriorityGate(),
	}

	for name, cfg := range registry.GetAll() {
		if !cfg.Enabled {
			continue
		}
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			slog.Warn("llmpool: skipping provider, API key not set", "provider", name, "env", cfg.APIKeyEnv)
			continue
		}

		rpm := cfg.RequestsPerMinute
		if rpm <= 0 {
			rpm = 60
		}
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = rpm
		}
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 10
		}

		p.clients[name] = &providerClient{
			cfg:     cfg,
			apiKey:  apiKey,
			http:    &http.Client{Timeout: cfg.Timeout},
			limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
			sema:    semaphore.NewWeighted(int64(maxConcurrent)),
		}
	}
	return p
}

// AvailableProviders returns the names of every provider the pool actually
// initialized a client for (enabled and with a usable API key).
func (p *Pool) AvailableProviders() []string {
	names := make([]string, 0, len(p.clients))
	for name := range p.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetWeightedProviderList distributes count slots across the available
// providers proportionally to their configured Weight, then shuffles so
// consecutive picks aren't dominated by one provider.
func (p *Pool) GetWeightedProviderList(count int) []string {
	providers := p.AvailableProviders()
	if len(providers) == 0 {
		return nil
	}

	totalWeight := 0
	weights := make(map[string]int, len(providers))
	for _, name := range providers {
		w := p.clients[name].cfg.Weight
		if w <= 0 {
			w = 10
		}
		weights[name] = w
		totalWeight += w
	}

	distributed := make([]string, 0, count)
	for _, name := range providers {
		share := max(1, count*weights[name]/totalWeight)
		for i := 0; i < share; i++ {
			distributed = append(distributed, name)
		}
	}
	for len(distributed) < count {
		best := providers[0]
		for _, name := range providers {
			if weights[name] > weights[best] {
				best = name
			}
		}
		distributed = append(distributed, best)
	}

	rand.Shuffle(len(distributed), func(i, j int) { distributed[i], distributed[j] = distributed[j], distributed[i] })
	return distributed[:count]
}

// Call issues one chat-completions request to the named provider,
// passing through the priority gate and the provider's own rate
// limiter/semaphore before the HTTP round trip.
func (p *Pool) Call(ctx context.Context, provider string, messages []Message, opts CallOptions) (CallResult, error) {
	client, ok := p.clients[provider]
	if !ok {
		return CallResult{}, fmt.Errorf("%w: %s", ErrProviderNotFound, provider)
	}

	p.priority.wait(opts.Priority)
	defer p.priority.release(opts.Priority)

	if err := client.limiter.Wait(ctx); err != nil {
		p.health.RecordFailure(provider, FailureRateLimit, 0)
		return CallResult{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}

	if err := client.sema.Acquire(ctx, 1); err != nil {
		return CallResult{}, err
	}
	defer client.sema.Release(1)

	start := time.Now()
	content, err := p.doCall(ctx, client, messages, opts)
	latencyMS := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		p.health.RecordFailure(provider, classifyFailure(err), latencyMS)
		return CallResult{}, err
	}

	p.health.RecordSuccess(provider, latencyMS)
	return CallResult{Content: content, LatencyMS: latencyMS, Provider: provider}, nil
}

// CallWithRetry calls Call up to maxRetries additional times on transient
// failures, backing off exponentially (retryDelay * 2^attempt) between
// attempts. Bad-request failures are never retried.
func (p *Pool) CallWithRetry(ctx context.Context, provider string, messages []Message, opts CallOptions, maxRetries int, retryDelay time.Duration) (CallResult, error) {
	policy := &doublingBackOff{base: retryDelay}
	bo := backoff.WithMaxRetries(policy, uint64(maxRetries))

	var result CallResult
	op := func() error {
		r, err := p.Call(ctx, provider, messages, opts)
		if err != nil {
			if errors.Is(err, ErrBadRequest) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	notify := func(err error, delay time.Duration) {
		slog.Info("llmpool: retrying provider call", "provider", provider, "attempt", policy.attempt, "max_retries", maxRetries, "delay", delay, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return CallResult{}, perm.Err
		}
		return CallResult{}, err
	}
	return result, nil
}

// doublingBackOff reproduces the original provider manager's retry delay:
// retryDelay * 2^attempt, with no jitter and no cap.
type doublingBackOff struct {
	base    time.Duration
	attempt int
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	d := b.base * (1 << b.attempt)
	b.attempt++
	return d
}

func (b *doublingBackOff) Reset() { b.attempt = 0 }

var _ backoff.BackOff = (*doublingBackOff)(nil)

// doCall performs the HTTP round trip and unwraps the completion content.
// Its errors are classified by classifyFailure for health scoring, and by
// CallWithRetry's own errors.Is(ErrBadRequest) check to skip retries.
func (p *Pool) doCall(ctx context.Context, client *providerClient, messages []Message, opts CallOptions) (string, error) {
	reqBody := chatCompletionRequest{
		Model:          client.cfg.Model,
		Messages:       messages,
		Temperature:    opts.Temperature,
		ResponseFormat: opts.ResponseFormat,
	}
	payload, err := sonic.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	timeout := client.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout * float64(time.Second))
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := client.cfg.Endpoint + "/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.apiKey)

	httpResp, err := client.http.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		return "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
		return "", ErrBadRequest
	}
	if httpResp.StatusCode >= 500 {
		return "", fmt.Errorf("llmpool: upstream error (%d)", httpResp.StatusCode)
	}

	var resp chatCompletionResponse
	if err := sonic.ConfigDefault.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("llmpool: decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llmpool: provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

func classifyFailure(err error) FailureType {
	switch {
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimit
	case errors.Is(err, ErrProviderTimeout):
		return FailureTimeout
	case errors.Is(err, ErrBadRequest):
		return FailureBadInput
	default:
		return FailureOther
	}
}

// Health exposes the pool's health monitor for status endpoints.
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// BestProvider returns the highest-scoring healthy provider among the
// pool's available providers, or "" if none are healthy.
func (p *Pool) BestProvider() string {
	return p.health.GetBestProvider(p.AvailableProviders())
}
