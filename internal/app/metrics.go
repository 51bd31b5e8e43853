package app

import (
	"github.com/dkeye/relay/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	sessions  prometheus.Gauge
	clients   prometheus.Gauge
	envelopes *prometheus.CounterVec
	cascades  prometheus.Counter
	kicks     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "sessions_active",
			Help:      "Sessions currently registered.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "clients_connected",
			Help:      "Clients with an open connection.",
		}),
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "envelopes_received_total",
			Help:      "Inbound envelopes by type.",
		}, []string{"type"}),
		cascades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "owner_cascades_total",
			Help:      "Sessions torn down because their owner left.",
		}),
		kicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "backpressure_kicks_total",
			Help:      "Members closed by the backpressure policy.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.clients, m.envelopes, m.cascades, m.kicks)
	}
	return m
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

func (m *Metrics) Envelope(k core.Kind) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) Cascade() {
	if m == nil {
		return
	}
	m.cascades.Inc()
}

func (m *Metrics) Kick() {
	if m == nil {
		return
	}
	m.kicks.Inc()
}
