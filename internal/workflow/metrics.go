package workflow

import "github.com/prometheus/client_golang/prometheus"

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	ProcessedTotal *prometheus.CounterVec
	AnomaliesTotal prometheus.Counter
	StatusTotal    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stepflow_events_processed_total", Help: "Inbound events handled by the orchestrator gate."},
			[]string{"kind", "status"},
		),
		AnomaliesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "stepflow_workflow_anomalies_total", Help: "Step completions for unknown workflows."},
		),
		StatusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stepflow_workflow_transitions_total", Help: "Workflow status transitions persisted."},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.ProcessedTotal, m.AnomaliesTotal, m.StatusTotal)
	return m
}

func (m *Metrics) processed(kind, status string) {
	if m == nil {
		return
	}
	m.ProcessedTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) anomaly() {
	if m == nil {
		return
	}
	m.AnomaliesTotal.Inc()
}

func (m *Metrics) transition(s Status) {
	if m == nil {
		return
	}
	m.StatusTotal.WithLabelValues(string(s)).Inc()
}
