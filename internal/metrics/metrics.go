// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	documents       *prometheus.CounterVec
	leads           *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxileads_provider_calls_total",
				Help: "Calls made to document, folder and table providers",
			},
			[]string{"op", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oxileads_provider_call_seconds",
				Help:    "Provider call latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"op"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxileads_documents_total",
				Help: "Documents materialized, by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),
		leads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxileads_lead_transitions_total",
				Help: "Lead status transitions",
			},
			[]string{"status"},
		),
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oxileads_webhooks_total",
				Help: "Inbound webhook deliveries",
			},
			[]string{"phase", "result"},
		),
	}
	m.registry.MustRegister(
		m.providerCalls,
		m.providerLatency,
		m.documents,
		m.leads,
		m.webhooks,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveProviderCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(op, outcome(err)).Inc()
	m.providerLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) DocumentMaterialized(phase string, err error) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(phase, outcome(err)).Inc()
}

func (m *Metrics) LeadTransition(status string) {
	if m == nil {
		return
	}
	m.leads.WithLabelValues(status).Inc()
}

func (m *Metrics) Webhook(phase, result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(phase, result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
