package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
)

// Client is a pooled SERP search client. Every request passes two
// independent admission gates before it reaches the wire: a token bucket
// (Client.limiter) shapes the steady-state rate, and a weighted semaphore
// (Client.sema) bounds the number of requests in flight. Both gates are
// acquired with their own configured timeout, and the rate limiter is
// always acquired first so a burst of callers queues on rate, not on
// connection slots.
type Client struct {
	cfg    *config.SearchConfig
	apiKey string
	http   *http.Client

	limiter *rate.Limiter
	sema    *semaphore.Weighted

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	requestCount     atomic.Int64
	successCount     atomic.Int64
	failureCount     atomic.Int64
	rateLimitedCount atomic.Int64
	inFlight         atomic.Int64
}

// NewClient builds a Client from cfg, reading the API key from the
// environment variable named by cfg.APIKeyEnv.
func NewClient(cfg *config.SearchConfig) (*Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("search: environment variable %s is not set", cfg.APIKeyEnv)
	}

	return &Client{
		cfg:    cfg,
		apiKey: apiKey,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.MaxBurst),
		sema:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cache:   make(map[string]cacheEntry),
	}, nil
}

// Search issues a single query for up to numResults organic results
// (<=0 uses the provider default, clamped to the provider's cap),
// applying the configured retry policy on transient failures. query is
// the free-text search string, e.g. a company legal name plus
// municipality.
//
// It never returns a Go error: on exhausted retries or a non-retryable
// upstream rejection, it reports totalFailure=true with empty results,
// mirroring _search_with_retry's "return [], retries_count, True"
// contract so callers can still persist a marker row rather than
// propagating a 500.
func (c *Client) Search(ctx context.Context, query string, numResults int) (results []Result, retriesConsumed int, totalFailure bool) {
	key := cacheKey(query, numResults)
	if cached, ok := c.cacheGet(key); ok {
		return cached, 0, false
	}

	policy := newRetryPolicy(c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay, c.cfg.RetryJitter, c.cfg.RetryAfterMax)
	bo := backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries))

	req := newSerpRequest([]string{query}, numResults)
	op := func() error {
		sets, err := c.doRequest(ctx, req, policy)
		if err != nil {
			return err
		}
		if len(sets) > 0 {
			results = sets[0]
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		slog.Error("search: query failed after retries", "query", query, "attempts", policy.attempt, "error", err)
		return nil, policy.attempt, true
	}

	c.cacheSet(key, results)
	return results, policy.attempt, false
}

// SearchBatch issues up to maxBatchQueries queries (truncating any
// excess, matching search_batch's batch_size = min(100, len(queries)))
// in one upstream request, returning one result set per input query in
// the same order. Like Search, it never returns a Go error: a failed
// batch reports totalFailure=true with every query's slot empty.
func (c *Client) SearchBatch(ctx context.Context, queries []string, numResults int) (rowsPerQuery [][]Result, retriesConsumed int, totalFailure bool) {
	if len(queries) == 0 {
		return nil, 0, false
	}
	if len(queries) > maxBatchQueries {
		queries = queries[:maxBatchQueries]
	}

	policy := newRetryPolicy(c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay, c.cfg.RetryJitter, c.cfg.RetryAfterMax)
	bo := backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries))

	req := newSerpRequest(queries, numResults)
	var sets [][]Result
	op := func() error {
		s, err := c.doRequest(ctx, req, policy)
		if err != nil {
			return err
		}
		sets = s
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		slog.Error("search: batch failed after retries", "queries", len(queries), "attempts", policy.attempt, "error", err)
		return make([][]Result, len(queries)), policy.attempt, true
	}

	out := make([][]Result, len(queries))
	for i := range queries {
		if i < len(sets) {
			out[i] = sets[i]
		}
	}
	return out, policy.attempt, false
}

// doRequest marshals req, performs the HTTP round trip through both
// admission gates, and decodes the provider's envelope into one result
// set per query req carried.
func (c *Client) doRequest(ctx context.Context, req serpRequest, policy *retryPolicy) ([][]Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	raw, err := c.roundTrip(ctx, body, policy)
	if err != nil {
		return nil, err
	}

	return parseEnvelope(raw, len(req.Queries))
}

// parseEnvelope decodes the provider's {"code":200,"data":...} envelope.
// data is a single result-set object for a one-query request, or an array
// of result-set objects (one per query, same order) for a batch request,
// matching _parse_serpshot_results / _parse_serpshot_results_batch.
func parseEnvelope(raw []byte, numQueries int) ([][]Result, error) {
	var env serpEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("search: decode response: %w", err))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return make([][]Result, numQueries), nil
	}

	var list []serpResultSet
	if err := json.Unmarshal(env.Data, &list); err == nil {
		out := make([][]Result, numQueries)
		for i := range out {
			if i < len(list) {
				out[i] = list[i].Results
			}
		}
		return out, nil
	}

	var single serpResultSet
	if err := json.Unmarshal(env.Data, &single); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("search: decode response data: %w", err))
	}
	out := make([][]Result, numQueries)
	if numQueries > 0 {
		out[0] = single.Results
	}
	return out, nil
}

// roundTrip passes one request body through both admission gates and the
// upstream HTTP call, returning the raw response body on success. It
// returns a *backoff.PermanentError for responses that retrying cannot fix
// (4xx other than 429), and a plain error for anything retryable.
func (c *Client) roundTrip(ctx context.Context, body []byte, policy *retryPolicy) ([]byte, error) {
	limiterCtx, cancel := context.WithTimeout(ctx, c.cfg.RateLimiterTimeout)
	defer cancel()
	if err := c.limiter.Wait(limiterCtx); err != nil {
		return nil, fmt.Errorf("search: rate limiter: %w", err)
	}

	semaCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionSemaphoreTimeout)
	defer cancel()
	if err := c.sema.Acquire(semaCtx, 1); err != nil {
		return nil, fmt.Errorf("search: connection semaphore: %w", err)
	}
	c.inFlight.Add(1)
	defer func() {
		c.inFlight.Add(-1)
		c.sema.Release(1)
	}()

	c.requestCount.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.failureCount.Add(1)
		return nil, err
	}
	defer httpResp.Body.Close()

	c.logRateLimitHeaders(httpResp.Header)

	if httpResp.StatusCode == http.StatusTooManyRequests {
		c.rateLimitedCount.Add(1)
		c.failureCount.Add(1)
		if d, ok := parseRetryAfter(httpResp.Header, c.cfg.RetryAfterMax); ok {
			policy.setRetryAfter(d)
		}
		return nil, fmt.Errorf("search: rate limited (429)")
	}

	if httpResp.StatusCode >= 500 {
		c.failureCount.Add(1)
		return nil, fmt.Errorf("search: upstream error (%d)", httpResp.StatusCode)
	}

	if httpResp.StatusCode >= 400 {
		c.failureCount.Add(1)
		return nil, backoff.Permanent(fmt.Errorf("search: client error (%d)", httpResp.StatusCode))
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	c.successCount.Add(1)
	return raw, nil
}

func (c *Client) logRateLimitHeaders(h http.Header) {
	remaining := h.Get("X-RateLimit-Remaining")
	limit := h.Get("X-RateLimit-Limit")
	reset := h.Get("X-RateLimit-Reset")
	if remaining == "" && limit == "" && reset == "" {
		return
	}
	slog.Debug("search: rate limit headers", "remaining", remaining, "limit", limit, "reset", reset)
}

func (c *Client) cacheGet(key string) ([]Result, bool) {
	if c.cfg.CacheTTL <= 0 {
		return nil, false
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.results, true
}

func (c *Client) cacheSet(key string, results []Result) {
	if c.cfg.CacheTTL <= 0 {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{results: results, expires: time.Now().Add(c.cfg.CacheTTL)}
}

// Status returns a snapshot of the client's request and admission metrics.
func (c *Client) Status() Status {
	return Status{
		RequestCount:      c.requestCount.Load(),
		SuccessCount:      c.successCount.Load(),
		FailureCount:      c.failureCount.Load(),
		RateLimitedCount:  c.rateLimitedCount.Load(),
		SemaphoreInUse:    c.inFlight.Load(),
		SemaphoreCapacity: int64(c.cfg.MaxConcurrent),
	}
}

// ResetMetrics zeroes the request/success/failure/rate-limited counters.
func (c *Client) ResetMetrics() {
	c.requestCount.Store(0)
	c.successCount.Store(0)
	c.failureCount.Store(0)
	c.rateLimitedCount.Store(0)
}
