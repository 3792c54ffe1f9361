// Package metrics exposes Prometheus instrumentation for the call engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbridge/voxbridge/pkg/core/call"
)

// Metrics holds all Prometheus metrics for the gateway. It implements
// call.Sink so the session loop feeds it directly.
type Metrics struct {
	registry *prometheus.Registry

	CallsActive  prometheus.Gauge
	CallsTotal   *prometheus.CounterVec
	TurnsTotal   prometheus.Counter
	TurnDuration prometheus.Histogram
	CallDuration prometheus.Histogram

	AdapterErrorsTotal *prometheus.CounterVec
	StaleResultsTotal  prometheus.Counter
}

// New creates a Metrics instance with all collectors registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voxbridge"
	}

	registry := prometheus.NewRegistry()

	callsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of calls currently in progress",
		},
	)

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of completed calls",
		},
		[]string{"reason"},
	)

	turnsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of completed conversation turns",
		},
	)

	turnDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time from utterance boundary to end of spoken reply",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	callDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Total call duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	adapterErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_errors_total",
			Help:      "Total adapter failures by stage and error type",
		},
		[]string{"stage", "error_type"},
	)

	staleResultsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Adapter results discarded because the turn moved on",
		},
	)

	registry.MustRegister(
		callsActive,
		callsTotal,
		turnsTotal,
		turnDuration,
		callDuration,
		adapterErrorsTotal,
		staleResultsTotal,
	)

	return &Metrics{
		registry:           registry,
		CallsActive:        callsActive,
		CallsTotal:         callsTotal,
		TurnsTotal:         turnsTotal,
		TurnDuration:       turnDuration,
		CallDuration:       callDuration,
		AdapterErrorsTotal: adapterErrorsTotal,
		StaleResultsTotal:  staleResultsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Emit implements call.Sink.
func (m *Metrics) Emit(ev call.Event) {
	switch e := ev.(type) {
	case *call.SessionCreatedEvent:
		m.CallsActive.Inc()
	case *call.SessionEndedEvent:
		m.CallsActive.Dec()
		m.CallsTotal.WithLabelValues(string(e.Reason)).Inc()
		m.CallDuration.Observe(e.Duration.Seconds())
	case *call.TurnCompletedEvent:
		m.TurnsTotal.Inc()
		m.TurnDuration.Observe(e.Duration.Seconds())
	case *call.AdapterErrorEvent:
		m.AdapterErrorsTotal.WithLabelValues(e.Stage, string(e.Type)).Inc()
	case *call.StaleResultEvent:
		m.StaleResultsTotal.Inc()
	}
}
