// Package metrics holds the Prometheus collectors shared across the crawler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegionsCrawled tracks processed dong leaves.
	RegionsCrawled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coumap_regions_crawled_total",
			Help: "Total number of dong leaves crawled",
		},
	)

	// ListingsFound tracks raw listings extracted from the widget.
	ListingsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coumap_listings_found_total",
			Help: "Total number of raw listings extracted",
		},
	)

	// StoresSaved tracks stores persisted to the relational store.
	StoresSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coumap_stores_saved_total",
			Help: "Total number of stores persisted",
		},
	)

	// GeocodeCalls tracks outbound geocoding calls per provider and outcome.
	GeocodeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coumap_geocode_calls_total",
			Help: "Total number of geocoding API calls",
		},
		[]string{"provider", "outcome"},
	)

	// GeocodeLatency tracks geocoding call latency per provider.
	GeocodeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coumap_geocode_latency_seconds",
			Help:    "Geocoding API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// SessionRecoveries tracks browser session recovery attempts.
	SessionRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coumap_session_recoveries_total",
			Help: "Total number of browser session recovery attempts",
		},
	)

	// FailedLookups tracks merchants whose geocoding failed.
	FailedLookups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coumap_failed_lookups_total",
			Help: "Total number of merchants with no validated geocoding result",
		},
	)

	// DBBatchSize observes persisted batch sizes.
	DBBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coumap_db_batch_size",
			Help:    "Number of listings per persistence batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)
)
