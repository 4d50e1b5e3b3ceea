package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	MessagesSent  *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
}

// New registers the gateway collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_messages_sent_total",
			Help: "Outbound messages dispatched, by provider and result.",
		}, []string{"provider", "result"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_webhook_events_total",
			Help: "Inbound webhook events processed, by provider and event type.",
		}, []string{"provider", "event"}),
	}

	reg.MustRegister(m.MessagesSent, m.WebhookEvents)
	return m
}

// Handler exposes the collectors for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
