package llmpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthMonitorStartsAtPerfectScore(t *testing.T) {
	h := NewHealthMonitor()
	assert.Equal(t, 100, h.GetHealthScore("unseen-provider"))
	assert.True(t, h.IsHealthy("unseen-provider"))
}

func TestHealthMonitorRecordSuccessKeepsScoreHigh(t *testing.T) {
	h := NewHealthMonitor()
	for i := 0; i < 10; i++ {
		h.RecordSuccess("p1", 500)
	}
	assert.Equal(t, 100, h.GetHealthScore("p1"))
}

func TestHealthMonitorRecordFailureDropsScore(t *testing.T) {
	h := NewHealthMonitor()
	h.RecordSuccess("p1", 500)
	for i := 0; i < 5; i++ {
		h.RecordFailure("p1", FailureOther, 0)
	}
	assert.Less(t, h.GetHealthScore("p1"), 100)
}

func TestHealthMonitorUnhealthyBelowThreshold(t *testing.T) {
	h := NewHealthMonitor()
	for i := 0; i < 20; i++ {
		h.RecordFailure("p1", FailureRateLimit, 0)
	}
	assert.False(t, h.IsHealthy("p1"))
}

func TestHealthMonitorGetHealthyProvidersOrdersByScore(t *testing.T) {
	h := NewHealthMonitor()
	h.RecordSuccess("best", 100)
	h.RecordSuccess("worst", 100)
	for i := 0; i < 10; i++ {
		h.RecordFailure("worst", FailureOther, 100)
	}

	healthy := h.GetHealthyProviders([]string{"worst", "best"})
	a := assert.New(t)
	a.NotEmpty(healthy)
	a.Equal("best", healthy[0])
}

func TestHealthMonitorGetBestProviderEmptyWhenNoneHealthy(t *testing.T) {
	h := NewHealthMonitor()
	for i := 0; i < 20; i++ {
		h.RecordFailure("p1", FailureRateLimit, 0)
	}
	assert.Equal(t, "", h.GetBestProvider([]string{"p1"}))
}

func TestHealthMonitorResetSingleProvider(t *testing.T) {
	h := NewHealthMonitor()
	h.RecordFailure("p1", FailureOther, 0)
	h.RecordFailure("p2", FailureOther, 0)

	h.Reset("p1")
	assert.Equal(t, 100, h.GetHealthScore("p1"))
	assert.Less(t, h.GetHealthScore("p2"), 100)
}

func TestHealthMonitorResetAll(t *testing.T) {
	h := NewHealthMonitor()
	h.RecordFailure("p1", FailureOther, 0)
	h.RecordFailure("p2", FailureOther, 0)

	h.Reset("")
	assert.Empty(t, h.GetAllMetrics())
}

func TestHealthMonitorGetMetricsReportsCounters(t *testing.T) {
	h := NewHealthMonitor()
	h.RecordSuccess("p1", 1000)
	h.RecordFailure("p1", FailureTimeout, 2000)

	m := h.GetMetrics("p1")
	assert.Equal(t, 2, m.RequestsTotal)
	assert.Equal(t, 1, m.Timeouts)
	assert.InDelta(t, 0.5, m.SuccessRate, 0.01)
}
