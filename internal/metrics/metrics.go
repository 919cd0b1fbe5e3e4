// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LeadsProcessed counts pipeline outcomes: accepted, duplicate, failed,
	// or a rejection reason.
	LeadsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_leads_processed_total",
			Help: "Raw leads run through the cleaning pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	LeadsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadsync_leads_stored_total",
		Help: "Leads newly appended to storage.",
	})

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_cache_lookups_total",
			Help: "Response cache lookups, by result (hit, miss, expired).",
		},
		[]string{"result"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_apollo_requests_total",
			Help: "Calls to the lead search API, by HTTP status or 'error'.",
		},
		[]string{"status"},
	)

	APIRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadsync_apollo_request_duration_seconds",
		Help:    "Latency of lead search API calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)
