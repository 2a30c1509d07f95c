package server

import "github.com/prometheus/client_golang/prometheus"

type gatewayMetrics struct {
	decisions *prometheus.CounterVec
	logins    *prometheus.CounterVec
}

func newGatewayMetrics(reg prometheus.Registerer) *gatewayMetrics {
	m := &gatewayMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "session",
			Name:      "decisions_total",
			Help:      "Session gateway outcomes by decision.",
		}, []string{"decision"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.decisions, m.logins)
	return m
}

func (m *gatewayMetrics) decision(d decision) {
	m.decisions.WithLabelValues(string(d)).Inc()
}

func (m *gatewayMetrics) login(result string) {
	m.logins.WithLabelValues(result).Inc()
}

func (m *gatewayMetrics) loginRejected() {
	m.login("rate_limited")
}
