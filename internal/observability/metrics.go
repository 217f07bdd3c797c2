// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "curator_signal_lab"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Signal metrics
	EventsReceived    prometheus.Counter
	SignalsRejected   *prometheus.CounterVec
	SignalsConfirmed  prometheus.Counter
	SignalsDiscarded  *prometheus.CounterVec
	PendingSignals    prometheus.Gauge
	EventSourceErrors *prometheus.CounterVec

	// Tracker metrics
	CheckpointsRecorded *prometheus.CounterVec
	CheckpointsSkipped  *prometheus.CounterVec
	TradesAbandoned     prometheus.Counter
	OpenTrades          prometheus.Gauge
	SweepDuration       prometheus.Histogram
	SweepErrors         prometheus.Counter

	// External call metrics
	ExternalCallLatency *prometheus.HistogramVec
	ExternalCallErrors  *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)

	return &Metrics{
		EventsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "events_received_total",
			Help:      "Total number of curator trade events received",
		}),
		SignalsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "rejected_total",
			Help:      "Total number of events rejected by the debouncer by reason",
		}, []string{"reason"}),
		SignalsConfirmed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "confirmed_total",
			Help:      "Total number of signals promoted to paper trades",
		}),
		SignalsDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "discarded_total",
			Help:      "Total number of pending signals discarded at confirmation by reason",
		}, []string{"reason"}),
		PendingSignals: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "pending",
			Help:      "Number of signals awaiting confirmation",
		}),
		EventSourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "source_errors_total",
			Help:      "Total number of trade event source errors by source",
		}, []string{"source"}),

		CheckpointsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "checkpoints_recorded_total",
			Help:      "Total number of checkpoints recorded by checkpoint and liquidity reading",
		}, []string{"checkpoint", "liquidity"}),
		CheckpointsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "checkpoints_skipped_total",
			Help:      "Total number of due checkpoints deferred to the next sweep",
		}, []string{"checkpoint"}),
		TradesAbandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "trades_abandoned_total",
			Help:      "Total number of trades abandoned by the stall policy",
		}),
		OpenTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "open_trades",
			Help:      "Number of trades with pending checkpoints",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "sweep_duration_seconds",
			Help:      "Checkpoint sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		SweepErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "sweep_errors_total",
			Help:      "Total number of transient errors during sweeps",
		}),

		ExternalCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_latency_seconds",
			Help:      "External API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
		ExternalCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "Total number of failed external API calls",
		}, []string{"service", "method"}),

		LastSuccessfulSweep: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of the last sweep without transient errors",
		}),
	}
}

// Handler returns an HTTP handler serving the metrics of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordEvent counts a received trade event.
func (m *Metrics) RecordEvent() {
	if m == nil {
		return
	}
	m.EventsReceived.Inc()
}

// RecordRejected counts a debouncer rejection.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.SignalsRejected.WithLabelValues(reason).Inc()
}

// RecordConfirmed counts a promoted signal.
func (m *Metrics) RecordConfirmed() {
	if m == nil {
		return
	}
	m.SignalsConfirmed.Inc()
}

// RecordDiscarded counts a signal dropped at confirmation.
func (m *Metrics) RecordDiscarded(reason string) {
	if m == nil {
		return
	}
	m.SignalsDiscarded.WithLabelValues(reason).Inc()
}

// SetPending updates the pending signals gauge.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingSignals.Set(float64(n))
}

// RecordSourceError counts a trade event source failure.
func (m *Metrics) RecordSourceError(source string) {
	if m == nil {
		return
	}
	m.EventSourceErrors.WithLabelValues(source).Inc()
}

// RecordCheckpoint counts a recorded checkpoint.
func (m *Metrics) RecordCheckpoint(checkpoint, liquidity string) {
	if m == nil {
		return
	}
	m.CheckpointsRecorded.WithLabelValues(checkpoint, liquidity).Inc()
}

// RecordCheckpointSkipped counts a due checkpoint that could not be priced.
func (m *Metrics) RecordCheckpointSkipped(checkpoint string) {
	if m == nil {
		return
	}
	m.CheckpointsSkipped.WithLabelValues(checkpoint).Inc()
}

// RecordAbandoned counts a trade closed by the stall policy.
func (m *Metrics) RecordAbandoned() {
	if m == nil {
		return
	}
	m.TradesAbandoned.Inc()
}

// SetOpenTrades updates the open trades gauge.
func (m *Metrics) SetOpenTrades(n int) {
	if m == nil {
		return
	}
	m.OpenTrades.Set(float64(n))
}

// RecordSweep records a sweep and its transient error count.
func (m *Metrics) RecordSweep(d time.Duration, errCount int, at time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
	if errCount > 0 {
		m.SweepErrors.Add(float64(errCount))
		return
	}
	m.LastSuccessfulSweep.Set(float64(at.Unix()))
}

// ObserveCall records the latency and outcome of an external API call.
func (m *Metrics) ObserveCall(service, method string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ExternalCallLatency.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ExternalCallErrors.WithLabelValues(service, method).Inc()
	}
}
