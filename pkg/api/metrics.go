package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/queue"
)

// Queue depth and worker gauges, refreshed on every /health check and
// scraped independently via GET /metrics.
var (
	queueDepthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sitescout_queue_depth",
		Help: "Number of jobs by queue and status.",
	}, []string{"queue", "status"})

	queueWorkersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sitescout_queue_active_workers",
		Help: "Active workers per queue.",
	}, []string{"queue"})
)

func observeQueueHealth(queueName string, health *queue.PoolHealth) {
	if health == nil {
		return
	}
	queueWorkersGauge.WithLabelValues(queueName).Set(float64(health.ActiveWorkers))
	queueDepthGauge.WithLabelValues(queueName, "queued").Set(float64(health.Metrics.QueuedCount))
	queueDepthGauge.WithLabelValues(queueName, "processing").Set(float64(health.Metrics.ProcessingCount))
	queueDepthGauge.WithLabelValues(queueName, "failed").Set(float64(health.Metrics.FailedCount))
}
