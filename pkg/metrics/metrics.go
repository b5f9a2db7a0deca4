// Package metrics registers the Prometheus instruments for the graph
// service. promauto wires everything into the default registry, the server
// exposes it at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skein_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Provider fetches, labeled by kind (graph, detail, search, meetings).
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_source_fetches_total",
			Help: "Provider fetches issued, by fetch kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SourceDedupedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_source_deduped_total",
			Help: "Provider fetches answered by an identical in-flight call",
		},
		[]string{"kind"},
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skein_source_fetch_duration_seconds",
			Help:    "Duration of underlying provider fetches, deduped followers excluded",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	GraphCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skein_graph_cache_hits_total",
			Help: "Base graph fetches served from the short-lived cache",
		},
	)

	// Exploration sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skein_active_sessions",
			Help: "Exploration sessions currently alive",
		},
	)

	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skein_session_events_total",
			Help: "Session events applied, by event kind",
		},
		[]string{"event"},
	)

	StaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skein_stale_responses_total",
			Help: "Async fetch results discarded because the session moved on",
		},
	)

	LayoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skein_layout_duration_seconds",
			Help:    "Time spent in a single force layout run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	LayoutNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skein_layout_nodes",
			Help:    "Node count per layout run",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)
