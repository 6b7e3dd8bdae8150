package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiRequestsTotal,
		aiRequestLatencyMs,
	)
}

var (
	aiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Generation calls per provider/model, labeled by outcome.",
		},
		[]string{"provider", "model", "outcome"}, // ok | timeout | rate_limited | overloaded | fatal
	)

	aiRequestLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_latency_ms",
			Help:    "Generation call latency in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
		},
		[]string{"provider", "model"},
	)
)

func ObserveAIRequest(provider, model, outcome string, latency time.Duration) {
	aiRequestsTotal.WithLabelValues(norm(provider), norm(model), norm(outcome)).Inc()
	aiRequestLatencyMs.WithLabelValues(norm(provider), norm(model)).Observe(float64(latency.Milliseconds()))
}
