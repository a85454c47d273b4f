package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	RecognitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcart_recognitions_total",
			Help: "Image recognition calls by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcart_recommendation_fetches_total",
			Help: "Recommendation fetches by outcome",
		},
		[]string{"outcome"},
	)

	StaleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcart_stale_results_discarded_total",
			Help: "Results dropped because a newer cycle superseded them",
		},
		[]string{"stage"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listcart_remote_call_duration_seconds",
			Help:    "Latency of remote service calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcart_cart_operations_total",
			Help: "Cart mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	CartItemCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listcart_cart_item_count",
			Help: "Sum of quantities currently in the cart",
		},
	)

	RecommendationCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcart_recommendation_cache_total",
			Help: "Recommendation cache lookups by result",
		},
		[]string{"result"},
	)
)
