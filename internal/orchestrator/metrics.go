package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks operation outcomes per key.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
	activity   *prometheus.CounterVec
}

// NewMetrics creates the orchestrator metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadowmarket",
			Subsystem: "operations",
			Name:      "total",
			Help:      "Orchestrated operations by key and terminal status.",
		}, []string{"key", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shadowmarket",
			Subsystem: "operations",
			Name:      "duration_seconds",
			Help:      "Wall time of orchestrated operations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"key"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shadowmarket",
			Subsystem: "operations",
			Name:      "in_flight",
			Help:      "Operations currently running, by key.",
		}, []string{"key"}),
		activity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadowmarket",
			Subsystem: "activity",
			Name:      "items_total",
			Help:      "Activity items logged, by severity.",
		}, []string{"severity"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.inFlight, m.activity)
	}
	return m
}

func (m *Metrics) started(key Key) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(key)).Inc()
}

func (m *Metrics) finished(key Key, status Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(key)).Dec()
	m.operations.WithLabelValues(string(key), string(status)).Inc()
	m.duration.WithLabelValues(string(key)).Observe(elapsed.Seconds())
}

func (m *Metrics) logged(sev string) {
	if m == nil {
		return
	}
	m.activity.WithLabelValues(sev).Inc()
}
