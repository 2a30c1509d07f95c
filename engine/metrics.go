package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine traffic. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	sessions     prometheus.Counter
	catalogCache *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Requests sent to the query engine by operation and HTTP status class.",
		}, []string{"op", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "engine",
			Name:      "retries_total",
			Help:      "Engine request attempts that were retried.",
		}, []string{"op"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "engine",
			Name:      "session_logins_total",
			Help:      "Bearer token acquisitions against the query engine.",
		}),
		catalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "engine",
			Name:      "catalog_cache_total",
			Help:      "Database catalog lookups by cache result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.sessions, m.catalogCache)
	}
	return m
}

func (m *Metrics) request(op string, status int) {
	if m == nil {
		return
	}
	class := "error"
	if status > 0 {
		class = string(rune('0'+status/100)) + "xx"
	}
	m.requests.WithLabelValues(op, class).Inc()
}

func (m *Metrics) retry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) login() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) catalog(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.catalogCache.WithLabelValues("hit").Inc()
		return
	}
	m.catalogCache.WithLabelValues("miss").Inc()
}
