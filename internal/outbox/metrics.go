package outbox

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	PublishedTotal *prometheus.CounterVec
	FailedTotal    *prometheus.CounterVec
	DeadTotal      *prometheus.CounterVec
	RequeuedTotal  prometheus.Counter
	LagSeconds     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stepflow_outbox_published_total", Help: "Outbox rows delivered."},
			[]string{"topic"},
		),
		FailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stepflow_outbox_failed_total", Help: "Failed outbox delivery attempts."},
			[]string{"topic"},
		),
		DeadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "stepflow_outbox_dead_total", Help: "Outbox rows given up after max attempts."},
			[]string{"topic"},
		),
		RequeuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "stepflow_outbox_requeued_total", Help: "Stuck processing rows put back to pending."},
		),
		LagSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "stepflow_outbox_lag_seconds", Help: "Age of the oldest pending outbox row."},
		),
	}
	reg.MustRegister(m.PublishedTotal, m.FailedTotal, m.DeadTotal, m.RequeuedTotal, m.LagSeconds)
	return m
}
