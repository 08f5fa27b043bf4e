package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	StepsTotal    *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	RejectedTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stepflow_steps_executed_total", Help: "Steps executed by the worker."},
			[]string{"step_type", "status"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "stepflow_step_duration_seconds", Help: "Handler execution time.", Buckets: prometheus.DefBuckets},
			[]string{"step_type"},
		),
		RejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "stepflow_step_requests_rejected_total", Help: "Step scheduled events that failed validation."},
		),
	}
	reg.MustRegister(m.StepsTotal, m.StepDuration, m.RejectedTotal)
	return m
}

func (m *Metrics) observe(stepType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(stepType, status).Inc()
	m.StepDuration.WithLabelValues(stepType).Observe(d.Seconds())
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.RejectedTotal.Inc()
}
