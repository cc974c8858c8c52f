package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
)

func testConfig(endpoint string) *config.SearchConfig {
	cfg := config.DefaultSearchConfig()
	cfg.Endpoint = endpoint
	cfg.APIKeyEnv = "TEST_SEARCH_API_KEY"
	cfg.RatePerSecond = 1000
	cfg.MaxBurst = 1000
	cfg.MaxConcurrent = 10
	cfg.RequestTimeout = 5 * time.Second
	cfg.ConnectTimeout = 2 * time.Second
	cfg.MaxRetries = 2
	cfg.RetryBaseDelay = 10 * time.Millisecond
	cfg.RetryMaxDelay = 50 * time.Millisecond
	cfg.RetryJitter = 5 * time.Millisecond
	cfg.RetryAfterMax = 200 * time.Millisecond
	cfg.RateLimiterTimeout = time.Second
	cfg.ConnectionSemaphoreTimeout = time.Second
	cfg.CacheTTL = 0
	return cfg
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("TEST_SEARCH_API_KEY", "dummy-key")
	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)
	return c, srv
}

// envelopeBody builds a provider response body {"code":200,"data":data}.
func envelopeBody(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(map[string]json.RawMessage{
		"code": json.RawMessage("200"),
		"data": raw,
	})
	require.NoError(t, err)
	return env
}

func TestNewClientRequiresAPIKeyEnv(t *testing.T) {
	os.Unsetenv("TEST_SEARCH_API_KEY_MISSING")
	cfg := testConfig("http://example.invalid")
	cfg.APIKeyEnv = "TEST_SEARCH_API_KEY_MISSING"
	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestSearchSucceeds(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dummy-key", r.Header.Get("X-API-Key"))

		var req serpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"Acme Ltda Sao Paulo"}, req.Queries)
		assert.Equal(t, "search", req.Type)
		assert.Equal(t, 10, req.Num)
		assert.Equal(t, "BR", req.Location)
		assert.Equal(t, "pt-BR", req.LR)
		assert.Equal(t, "br", req.GL)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{Results: []Result{{Title: "Acme Ltda", Link: "https://acme.example", Snippet: "..."}}}))
	})

	results, retries, totalFailure := c.Search(context.Background(), "Acme Ltda Sao Paulo", 10)
	require.False(t, totalFailure)
	assert.Equal(t, 0, retries)
	require.Len(t, results, 1)
	assert.Equal(t, "Acme Ltda", results[0].Title)
}

func TestSearchClampsNumResultsToProviderCap(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req serpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, maxNumResults, req.Num)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	})

	_, _, totalFailure := c.Search(context.Background(), "query", 500)
	require.False(t, totalFailure)
}

func TestSearchDefaultsNumResultsWhenZero(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req serpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultNumResults, req.Num)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	})

	_, _, totalFailure := c.Search(context.Background(), "query", 0)
	require.False(t, totalFailure)
}

func TestSearchRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	})

	_, retries, totalFailure := c.Search(context.Background(), "query", 10)
	require.False(t, totalFailure)
	assert.Equal(t, 1, retries)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	results, retries, totalFailure := c.Search(context.Background(), "query", 10)
	assert.True(t, totalFailure)
	assert.Empty(t, results)
	assert.Equal(t, 0, retries)
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 should not be retried")
}

func TestSearchHonorsRetryAfterOn429(t *testing.T) {
	var calls atomic.Int32
	var firstCallTime, secondCallTime time.Time
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			firstCallTime = time.Now()
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondCallTime = time.Now()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	})

	_, _, totalFailure := c.Search(context.Background(), "query", 10)
	require.False(t, totalFailure)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, secondCallTime.After(firstCallTime) || secondCallTime.Equal(firstCallTime))
}

func TestSearchExhaustsRetriesAndFails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	results, _, totalFailure := c.Search(context.Background(), "query", 10)
	assert.True(t, totalFailure)
	assert.Empty(t, results)
}

func TestSearchCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("TEST_SEARCH_API_KEY", "dummy-key")
	cfg := testConfig(srv.URL)
	cfg.CacheTTL = time.Minute
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, _, totalFailure := c.Search(context.Background(), "cached query", 10)
	require.False(t, totalFailure)
	_, _, totalFailure = c.Search(context.Background(), "cached query", 10)
	require.False(t, totalFailure)

	assert.Equal(t, int32(1), calls.Load(), "second call should be served from cache")
}

func TestSearchCacheKeyedByNumResults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("TEST_SEARCH_API_KEY", "dummy-key")
	cfg := testConfig(srv.URL)
	cfg.CacheTTL = time.Minute
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, _, totalFailure := c.Search(context.Background(), "query", 10)
	require.False(t, totalFailure)
	_, _, totalFailure = c.Search(context.Background(), "query", 20)
	require.False(t, totalFailure)

	assert.Equal(t, int32(2), calls.Load(), "a different numResults should not hit the other's cache entry")
}

func TestSearchBatchTruncatesOverMaxBatchQueries(t *testing.T) {
	var calls atomic.Int32
	var gotQueries int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req serpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotQueries = len(req.Queries)
		calls.Add(1)

		sets := make([]serpResultSet, len(req.Queries))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, sets))
	})

	queries := make([]string, maxBatchQueries+5)
	for i := range queries {
		queries[i] = "query-" + strconv.Itoa(i)
	}

	rowsPerQuery, _, totalFailure := c.SearchBatch(context.Background(), queries, 10)
	require.False(t, totalFailure)
	assert.Len(t, rowsPerQuery, maxBatchQueries, "batch should be truncated to the provider's cap")
	assert.Equal(t, maxBatchQueries, gotQueries)
	assert.Equal(t, int32(1), calls.Load(), "a truncated batch is a single upstream request")
}

func TestSearchBatchOneHTTPCallCoversWholeChunk(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, []serpResultSet{
			{Results: []Result{{Title: "a"}}},
			{Results: []Result{{Title: "b"}}},
			{Results: []Result{{Title: "c"}}},
		}))
	})

	rowsPerQuery, _, totalFailure := c.SearchBatch(context.Background(), []string{"a", "b", "c"}, 10)
	require.False(t, totalFailure)
	require.Len(t, rowsPerQuery, 3)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "a", rowsPerQuery[0][0].Title)
	assert.Equal(t, "c", rowsPerQuery[2][0].Title)
}

func TestSearchBatchFailureReturnsEmptyRowsForEveryQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	queries := []string{"a", "b", "c"}
	rowsPerQuery, retries, totalFailure := c.SearchBatch(context.Background(), queries, 10)
	assert.True(t, totalFailure)
	assert.Equal(t, 0, retries)
	require.Len(t, rowsPerQuery, 3)
	for _, rows := range rowsPerQuery {
		assert.Empty(t, rows)
	}
}

func TestSearchBatchEmptyQueriesIsNoop(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no HTTP call expected for an empty batch")
	})

	rowsPerQuery, retries, totalFailure := c.SearchBatch(context.Background(), nil, 10)
	assert.False(t, totalFailure)
	assert.Equal(t, 0, retries)
	assert.Empty(t, rowsPerQuery)
}

func TestStatusReportsCounters(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(envelopeBody(t, serpResultSet{}))
	})

	_, _, totalFailure := c.Search(context.Background(), "query", 10)
	require.False(t, totalFailure)

	status := c.Status()
	assert.Equal(t, int64(1), status.RequestCount)
	assert.Equal(t, int64(1), status.SuccessCount)
	assert.Equal(t, int64(0), status.FailureCount)

	c.ResetMetrics()
	status = c.Status()
	assert.Equal(t, int64(0), status.RequestCount)
}
