// Package metrics provides Prometheus metrics for the research agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	ChatTurnsTotal       *prometheus.CounterVec
	BackgroundUnitsTotal *prometheus.CounterVec
	CollaboratorErrors   *prometheus.CounterVec
	StreamsActive        prometheus.Gauge
	PapersTotal          *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_agent_requests_total",
				Help: "Total HTTP requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "research_agent_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ChatTurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_agent_chat_turns_total",
				Help: "Total conversational turns by process and outcome.",
			},
			[]string{"process", "outcome"},
		),
		BackgroundUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_agent_background_units_total",
				Help: "Background work units by kind and terminal status.",
			},
			[]string{"kind", "status"},
		),
		CollaboratorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_agent_collaborator_errors_total",
				Help: "External collaborator failures by service.",
			},
			[]string{"service"},
		),
		StreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "research_agent_streams_active",
				Help: "Currently open event stream connections.",
			},
		),
		PapersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_agent_papers_total",
				Help: "Papers added to collections by source.",
			},
			[]string{"source"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ChatTurnsTotal)
	reg.MustRegister(m.BackgroundUnitsTotal)
	reg.MustRegister(m.CollaboratorErrors)
	reg.MustRegister(m.StreamsActive)
	reg.MustRegister(m.PapersTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveDuration records request duration.
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordChatTurn increments the chat turn counter.
func (m *Metrics) RecordChatTurn(process, outcome string) {
	m.ChatTurnsTotal.WithLabelValues(process, outcome).Inc()
}

// RecordUnit increments the background unit counter with its terminal status.
func (m *Metrics) RecordUnit(kind, status string) {
	m.BackgroundUnitsTotal.WithLabelValues(kind, status).Inc()
}

// RecordCollaboratorError increments the external failure counter.
func (m *Metrics) RecordCollaboratorError(service string) {
	m.CollaboratorErrors.WithLabelValues(service).Inc()
}

// RecordPaperAdded increments the paper counter.
func (m *Metrics) RecordPaperAdded(source string) {
	m.PapersTotal.WithLabelValues(source).Inc()
}
