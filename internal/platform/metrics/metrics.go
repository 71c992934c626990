// Package metrics declares the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP front-end metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onepaper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Source adapter metrics
	AdapterFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_adapter_fetch_total",
			Help: "Total number of source adapter fetches",
		},
		[]string{"source", "status"},
	)

	AdapterFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onepaper_adapter_fetch_duration_seconds",
			Help:    "Source adapter fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	AdapterItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_adapter_items_total",
			Help: "Total number of news items returned by source adapters",
		},
		[]string{"source"},
	)

	// Result cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_cache_lookups_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"result"},
	)

	// Dispatch metrics
	DispatchPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_dispatch_passes_total",
			Help: "Total number of dispatch passes",
		},
		[]string{"trigger"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_deliveries_total",
			Help: "Total number of digest deliveries",
		},
		[]string{"outcome"},
	)

	DispatchPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onepaper_dispatch_pass_duration_seconds",
			Help:    "Dispatch pass duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Subscriber metrics
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onepaper_subscribers",
			Help: "Number of subscribers in the store",
		},
	)

	// Event publishing metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepaper_events_published_total",
			Help: "Total number of events published to the broker",
		},
		[]string{"subject", "status"},
	)
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
