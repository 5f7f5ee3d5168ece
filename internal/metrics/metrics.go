// Package metrics provides Prometheus metrics for the valuation service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valuation_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Revaluation Metrics
	RevaluationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_revaluation_runs_total",
			Help: "Per-user revaluation passes by result",
		},
		[]string{"result"}, // "ok", "failed", "noop"
	)

	RevaluationItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_revaluation_items_total",
			Help: "Collection items seen by the revaluation engine, by outcome",
		},
		[]string{"outcome"}, // "valued", "no_price", "unsupported"
	)

	RevaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "valuation_revaluation_duration_seconds",
			Help:    "Time taken to revalue one user's collection",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	PortfolioValueCents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "valuation_portfolio_value_cents",
			Help: "Total value of all portfolios on the latest revaluation date, by game",
		},
		[]string{"game"},
	)

	// Resolver Metrics
	ResolverLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_resolver_lookups_total",
			Help: "Price lookups by vendor and result",
		},
		[]string{"source", "result"}, // result: "hit", "miss", "error"
	)

	ResolverCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "valuation_resolver_cache_hits_total",
			Help: "Resolver quote cache hit count",
		},
	)

	ResolverCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "valuation_resolver_cache_misses_total",
			Help: "Resolver quote cache miss count",
		},
	)

	// Market Metrics
	MarketSnapshotsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "valuation_market_snapshots_written_total",
			Help: "Market price snapshot rows upserted",
		},
	)

	MarketItemsUnpriced = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "valuation_market_items_unpriced",
			Help: "Active market items with no usable price on the last rollup",
		},
	)

	// Vendor Metrics
	VendorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_vendor_requests_total",
			Help: "Outbound vendor API requests by vendor and status",
		},
		[]string{"vendor", "status"},
	)

	VendorRowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_vendor_rows_upserted_total",
			Help: "Vendor price rows written by sync",
		},
		[]string{"vendor"},
	)

	// Pipeline Metrics
	PipelineStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "valuation_pipeline_step_duration_seconds",
			Help:    "Nightly pipeline step duration",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"step", "status"},
	)

	PipelineLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "valuation_pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of each pipeline step",
		},
		[]string{"step"},
	)
)
