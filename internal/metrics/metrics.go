// Package metrics provides Prometheus metrics for the rarity tracker.
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
			Name: "rarity_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Sync Worker Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarity_sync_runs_total",
			Help: "Collection sync runs by result",
		},
		[]string{"result"}, // "success" or "failed"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rarity_sync_duration_seconds",
			Help:    "Time taken to sync and rescore one collection",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	AssetsIndexed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rarity_assets_indexed",
			Help: "Number of assets in the facet index per collection",
		},
		[]string{"policy"},
	)

	NewAssetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rarity_new_assets_total",
			Help: "Total number of newly observed assets across syncs",
		},
	)

	// Ingestion Metrics
	ChainRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rarity_chain_requests_total",
			Help: "Total GraphQL metadata requests made",
		},
	)

	MarketRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rarity_market_requests_total",
			Help: "Total marketplace API requests made",
		},
	)

	MarketQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rarity_market_quota_remaining",
			Help: "Remaining marketplace API requests for today",
		},
	)

	// Collection Metrics
	CollectionAssets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rarity_collection_assets",
			Help: "Number of assets per collection",
		},
		[]string{"policy"},
	)

	CollectionSoldAssets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rarity_collection_sold_assets",
			Help: "Number of assets with at least one recorded sale",
		},
		[]string{"policy"},
	)

	CollectionModelKind = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rarity_collection_model_info",
			Help: "Value model in use per collection (1 for the active kind)",
		},
		[]string{"policy", "kind"},
	)
)
