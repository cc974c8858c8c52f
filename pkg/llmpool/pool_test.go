package llmpool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
)

func testRegistry(t *testing.T, endpoints map[string]string) *config.ProviderRegistry {
	t.Helper()
	providers := make(map[string]*config.ProviderConfig, len(endpoints))
	for name, endpoint := range endpoints {
		envVar := "TEST_LLM_KEY_" + name
		t.Setenv(envVar, "dummy-key")
		providers[name] = &config.ProviderConfig{
			Name:              name,
			Endpoint:          endpoint,
			Model:             "test-model",
			APIKeyEnv:         envVar,
			MaxConcurrent:     10,
			Weight:            10,
			Priority:          50,
			Timeout:           5 * time.Second,
			Enabled:           true,
			RequestsPerMinute: 6000,
			BurstSize:         1000,
		}
	}
	return config.NewProviderRegistry(providers)
}

func jsonHandler(fn func(r *http.Request) (int, any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := fn(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func successResponse(content string) chatCompletionResponse {
	var resp chatCompletionResponse
	resp.Choices = []struct {
		Message Message `json:"message"`
	}{{Message: Message{Role: "assistant", Content: content}}}
	return resp
}

func TestNewPoolSkipsProvidersWithoutAPIKey(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"no-key": {Name: "no-key", APIKeyEnv: "TEST_LLM_KEY_MISSING_XYZ", Enabled: true, Endpoint: "http://example.invalid"},
	}
	registry := config.NewProviderRegistry(providers)
	pool := NewPool(registry)

	assert.Empty(t, pool.AvailableProviders())
}

func TestCallSucceeds(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(func(r *http.Request) (int, any) {
		assert.Equal(t, "Bearer dummy-key", r.Header.Get("Authorization"))
		return http.StatusOK, successResponse("hello from provider")
	}))
	t.Cleanup(srv.Close)

	registry := testRegistry(t, map[string]string{"primary": srv.URL})
	pool := NewPool(registry)
	require.Contains(t, pool.AvailableProviders(), "primary")

	result, err := pool.Call(context.Background(), "primary", []Message{{Role: "user", Content: "hi"}}, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello from provider", result.Content)
	assert.Equal(t, "primary", result.Provider)
}

func TestCallUnknownProvider(t *testing.T) {
	registry := testRegistry(t, map[string]string{})
	pool := NewPool(registry)

	_, err := pool.Call(context.Background(), "ghost", nil, CallOptions{})
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestCallBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(jsonHandler(func(r *http.Request) (int, any) {
		calls.Add(1)
		return http.StatusBadRequest, map[string]string{"error": "bad"}
	}))
	t.Cleanup(srv.Close)

	registry := testRegistry(t, map[string]string{"primary": srv.URL})
	pool := NewPool(registry)

	_, err := pool.CallWithRetry(context.Background(), "primary", nil, CallOptions{}, 3, time.Millisecond)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(jsonHandler(func(r *http.Request) (int, any) {
		if calls.Add(1) == 1 {
			return http.StatusInternalServerError, map[string]string{}
		}
		return http.StatusOK, successResponse("ok")
	}))
	t.Cleanup(srv.Close)

	registry := testRegistry(t, map[string]string{"primary": srv.URL})
	pool := NewPool(registry)

	result, err := pool.CallWithRetry(context.Background(), "primary", nil, CallOptions{}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallRecordsHealthOnSuccessAndFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(jsonHandler(func(r *http.Request) (int, any) {
		if fail.Load() {
			return http.StatusInternalServerError, map[string]string{}
		}
		return http.StatusOK, successResponse("ok")
	}))
	t.Cleanup(srv.Close)

	registry := testRegistry(t, map[string]string{"primary": srv.URL})
	pool := NewPool(registry)

	_, err := pool.Call(context.Background(), "primary", nil, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100, pool.Health().GetHealthScore("primary"))

	fail.Store(true)
	_, err = pool.Call(context.Background(), "primary", nil, CallOptions{})
	assert.Error(t, err)
	assert.Less(t, pool.Health().GetHealthScore("primary"), 100)
}

func TestGetWeightedProviderListDistributesProportionally(t *testing.T) {
	registry := testRegistry(t, map[string]string{"a": "http://a.invalid", "b": "http://b.invalid"})
	providers := registry.GetAll()
	providers["a"].Weight = 90
	providers["b"].Weight = 10
	registry = config.NewProviderRegistry(providers)

	pool := NewPool(registry)
	list := pool.GetWeightedProviderList(100)
	require.Len(t, list, 100)

	counts := map[string]int{}
	for _, p := range list {
		counts[p]++
	}
	assert.Greater(t, counts["a"], counts["b"], "higher-weighted provider should dominate the distribution")
}

func TestGetWeightedProviderListEmptyWhenNoProviders(t *testing.T) {
	registry := testRegistry(t, map[string]string{})
	pool := NewPool(registry)
	assert.Nil(t, pool.GetWeightedProviderList(10))
}

func TestBestProviderReturnsEmptyWhenNoneAvailable(t *testing.T) {
	registry := testRegistry(t, map[string]string{})
	pool := NewPool(registry)
	assert.Equal(t, "", pool.BestProvider())
}
