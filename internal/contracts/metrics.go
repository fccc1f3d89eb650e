package contracts

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts chain calls and discovery outcomes.
type Metrics struct {
	calls      *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	discovered prometheus.Gauge
}

// NewMetrics creates the adapter metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadowmarket",
			Subsystem: "contracts",
			Name:      "calls_total",
			Help:      "Chain calls issued by the contracts adapter, by entrypoint and result.",
		}, []string{"entrypoint", "kind", "result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadowmarket",
			Subsystem: "discovery",
			Name:      "skipped_total",
			Help:      "Market identifiers omitted from discovery, by reason.",
		}, []string{"reason"}),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shadowmarket",
			Subsystem: "discovery",
			Name:      "markets",
			Help:      "Markets returned by the most recent discovery scan.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.skipped, m.discovered)
	}
	return m
}

func (m *Metrics) observeCall(entrypoint, kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.calls.WithLabelValues(entrypoint, kind, result).Inc()
}

func (m *Metrics) observeSkip(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeDiscovered(n int) {
	if m == nil {
		return
	}
	m.discovered.Set(float64(n))
}
