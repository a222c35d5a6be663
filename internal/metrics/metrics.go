// Package metrics provides Prometheus metrics for the IR Tracker application.
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
			Name: "irt_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irt_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upstream API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irt_upstream_requests_total",
			Help: "Total upstream API requests by provider and outcome",
		},
		[]string{"provider", "result"}, // provider: "catalog", "marketplace"; result: "ok", "retry", "error"
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irt_upstream_latency_seconds",
			Help:    "Upstream API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	MarketplaceQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irt_marketplace_quota_remaining",
			Help: "Remaining marketplace API requests for today",
		},
	)

	// Matcher Metrics
	MarketplaceMatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "irt_marketplace_matches",
			Help:    "Number of listings left after matching and filtering",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)

	MarketplaceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irt_marketplace_lookups_total",
			Help: "Best price lookups by outcome",
		},
		[]string{"result"}, // "found", "none", "unmapped", "error"
	)

	// Stats Metrics
	StatsRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irt_stats_recompute_total",
			Help: "Number of full expansion total recomputes",
		},
		[]string{"result"}, // "ok", "error"
	)

	StatsRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "irt_stats_recompute_duration_seconds",
			Help:    "Time taken to recompute expansion totals from the catalog",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Collection Metrics
	CollectionTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irt_collection_toggles_total",
			Help: "Collected flag changes",
		},
		[]string{"state"}, // "collected", "uncollected"
	)

	WishlistUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irt_wishlist_upserts_total",
			Help: "Wishlist upserts by operation",
		},
		[]string{"operation"}, // "created", "updated"
	)

	// Catalog Sync Metrics
	CatalogSyncCardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "irt_catalog_sync_cards_total",
			Help: "Template cards written by catalog sync",
		},
	)

	TemplateCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irt_template_cards_total",
			Help: "Number of template cards in the database",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irt_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"prefix"},
	)
)
