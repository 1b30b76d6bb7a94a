package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal tracks completed analyses by result source.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_analyses_total",
			Help: "Total number of completed analyses",
		},
		[]string{"source"},
	)

	// ProviderCallsTotal tracks provider attempts by outcome.
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_provider_calls_total",
			Help: "Total number of provider attempts",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderErrorsTotal tracks provider call errors by kind.
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_provider_errors_total",
			Help: "Total number of provider call errors",
		},
		[]string{"provider", "error_kind"},
	)

	// ProviderLatency tracks provider call latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyzer_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// BreakerState tracks circuit breaker state per provider
	// (0 = closed, 1 = open, 2 = half_open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analyzer_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half_open)",
		},
		[]string{"provider"},
	)

	// CacheHitsTotal tracks result cache hits and misses.
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_cache_requests_total",
			Help: "Total result cache lookups",
		},
		[]string{"result"},
	)
)
