// Package metrics provides Prometheus metrics for allday.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts API requests by route and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allday",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"route", "code"},
	)

	// RenderDuration measures page renders.
	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "allday",
			Name:      "render_duration_seconds",
			Help:      "Duration of page renders in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// FetchTotal counts upstream fetches by method and outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allday",
			Name:      "fetch_total",
			Help:      "Total number of upstream fetches",
		},
		[]string{"method", "status"},
	)

	// CacheTotal counts fetch cache lookups.
	CacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allday",
			Name:      "cache_lookups_total",
			Help:      "Total number of fetch cache lookups",
		},
		[]string{"result"},
	)

	// EntriesTotal counts classified listing entries by state.
	EntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allday",
			Name:      "classified_entries_total",
			Help:      "Total number of classified listing entries",
		},
		[]string{"state"},
	)
)

// RecordFetch records an upstream fetch.
func RecordFetch(method, status string) {
	FetchTotal.WithLabelValues(method, status).Inc()
}

// RecordCache records a cache hit or miss.
func RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheTotal.WithLabelValues(result).Inc()
}

// RecordEntries counts entries per state. Untimed entries count as "none".
func RecordEntries(states []string) {
	for _, s := range states {
		if s == "" {
			s = "none"
		}
		EntriesTotal.WithLabelValues(s).Inc()
	}
}
