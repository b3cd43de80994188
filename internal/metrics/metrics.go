package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driving_alerts_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Ingest metrics
	EventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_events_ingested_total",
			Help: "Total number of driving events stored",
		},
		[]string{"safe"},
	)

	// Evaluation metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_evaluation_cycles_total",
			Help: "Total number of evaluation cycles run",
		},
		[]string{"trigger"}, // trigger: periodic, event, manual
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "driving_alerts_evaluation_cycle_duration_seconds",
			Help:    "Time taken by one evaluation cycle across all categories",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_alerts_created_total",
			Help: "Total number of alerts inserted",
		},
		[]string{"location_type"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_alerts_suppressed_total",
			Help: "Threshold breaches suppressed because an alert already covers the window",
		},
		[]string{"location_type"},
	)

	EvaluationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_evaluation_failures_total",
			Help: "Per-category evaluation failures",
		},
		[]string{"location_type", "kind"}, // kind: query, write
	)

	// Store metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "driving_alerts_store_breaker_state",
			Help: "Store circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driving_alerts_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
