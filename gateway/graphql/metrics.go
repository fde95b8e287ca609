package graphql

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks gateway activity. All methods tolerate a nil
// receiver so metrics stay optional.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
}

// NewMetrics creates and registers the gateway metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkstream",
				Subsystem: "graphql",
				Name:      "requests_total",
				Help:      "Total number of GraphQL operations handled",
			},
			[]string{"operation"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkstream",
				Subsystem: "graphql",
				Name:      "errors_total",
				Help:      "Total number of failed GraphQL operations",
			},
			[]string{"operation"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkstream",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events published to the bus",
			},
			[]string{"topic"},
		),
		ActiveSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "linkstream",
				Subsystem: "graphql",
				Name:      "active_subscriptions",
				Help:      "Number of live subscription streams",
			},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.ErrorsTotal, m.EventsPublished, m.ActiveSubscriptions)
	return m
}

func (m *Metrics) observeRequest(operation string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) observeError(operation string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) observeEvent(topic string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(topic).Inc()
}

func (m *Metrics) subscriptionStarted() {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Inc()
}

func (m *Metrics) subscriptionEnded() {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Dec()
}
