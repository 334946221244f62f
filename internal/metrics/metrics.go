// Package metrics exposes Prometheus collectors for conversion runs. Collectors
// are registered on an injected registry; nothing is registered globally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fragmenter"

// Metrics records orchestrator activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	items          *prometheus.CounterVec
	attempts       *prometheus.CounterVec
	attemptSeconds *prometheus.HistogramVec
	sinkPuts       *prometheus.CounterVec
	runs           *prometheus.CounterVec
	lastRun        prometheus.Gauge
	inFlight       prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Work items by terminal status.",
		}, []string{"status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Conversion attempts by producer and result reason (ok on success).",
		}, []string{"producer", "tier", "reason"}),
		attemptSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall-clock duration of conversion attempts.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"producer", "tier"}),
		sinkPuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_puts_total",
			Help:      "Sink put results per sink.",
		}, []string{"sink", "result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs by how they ended.",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch run finished.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_in_flight",
			Help:      "Items currently being converted.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.items, m.attempts, m.attemptSeconds, m.sinkPuts, m.runs, m.lastRun, m.inFlight)
	}
	return m
}

// ItemStarted marks an item as in flight.
func (m *Metrics) ItemStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// ItemFinished records an item's terminal status.
func (m *Metrics) ItemFinished(status string) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.items.WithLabelValues(status).Inc()
}

// Attempt records one worker or fallback attempt.
func (m *Metrics) Attempt(producer, tier, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(producer, tier, reason).Inc()
	m.attemptSeconds.WithLabelValues(producer, tier).Observe(elapsed.Seconds())
}

// SinkPut records a put result (stored, already_present, failed, not_attempted).
func (m *Metrics) SinkPut(sinkName, result string) {
	if m == nil {
		return
	}
	m.sinkPuts.WithLabelValues(sinkName, result).Inc()
}

// RunFinished records the end of a batch run.
func (m *Metrics) RunFinished(interrupted bool, at time.Time) {
	if m == nil {
		return
	}
	result := "completed"
	if interrupted {
		result = "interrupted"
	}
	m.runs.WithLabelValues(result).Inc()
	m.lastRun.Set(float64(at.Unix()))
}
