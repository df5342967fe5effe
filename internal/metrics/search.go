package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and rerank Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coursedex",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coursedex",
			Name:      "search_candidates",
			Help:      "Size of the candidate pool per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
		},
	)

	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursedex",
			Name:      "rerank_requests_total",
			Help:      "Rerank attempts by outcome",
		},
		[]string{"outcome"}, // "skipped" / "succeeded" / "failed"
	)

	RerankRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coursedex",
			Name:      "rerank_request_duration_seconds",
			Help:      "Reranker provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	RerankCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursedex",
			Name:      "rerank_cache_total",
			Help:      "Rerank result cache hits and misses",
		},
		[]string{"result"},
	)
)

var searchOnce sync.Once

// RegisterSearchMetrics registers the collectors on the default registry. Safe to call repeatedly.
func RegisterSearchMetrics() {
	searchOnce.Do(func() {
		prometheus.MustRegister(
			SearchDuration,
			SearchCandidates,
			RerankRequestsTotal,
			RerankRequestDuration,
			RerankCacheTotal,
		)
	})
}
