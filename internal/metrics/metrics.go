// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine updates. Each instance owns its
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// EventsReceived counts inbound chat events by type (message, postback, ...).
	EventsReceived *prometheus.CounterVec

	// CommandsHandled counts dispatched inputs by canonical command and outcome.
	CommandsHandled *prometheus.CounterVec

	// RepliesSent counts delivered messages by method (reply, push) and
	// failed deliveries as method "dropped".
	RepliesSent *prometheus.CounterVec

	// TransactionsRecorded counts new ledger entries by kind.
	TransactionsRecorded *prometheus.CounterVec

	// BackgroundTasks counts detached side effects by name and outcome
	// (ok, error, panic).
	BackgroundTasks *prometheus.CounterVec

	// WebhookSignatureFailures counts deliveries with a bad signature.
	WebhookSignatureFailures prometheus.Counter

	// ParserFallbacks counts inputs handed to the LLM parser.
	ParserFallbacks prometheus.Counter
}

// New creates a Metrics with a fresh registry. When withRuntime is true
// the Go runtime and process collectors are registered too.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "events_received_total",
			Help:      "Inbound chat events by type.",
		}, []string{"type"}),
		CommandsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "commands_handled_total",
			Help:      "Dispatched inputs by command and outcome.",
		}, []string{"command", "outcome"}),
		RepliesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "replies_total",
			Help:      "Outbound messages by delivery method.",
		}, []string{"method"}),
		TransactionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "transactions_recorded_total",
			Help:      "Ledger entries created from chat input.",
		}, []string{"kind"}),
		BackgroundTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "background_tasks_total",
			Help:      "Detached side effects by task and outcome.",
		}, []string{"task", "outcome"}),
		WebhookSignatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "webhook_signature_failures_total",
			Help:      "Webhook deliveries whose signature did not verify.",
		}),
		ParserFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lineledger",
			Name:      "parser_llm_fallbacks_total",
			Help:      "Inputs the heuristic parser could not handle.",
		}),
	}

	reg.MustRegister(
		m.EventsReceived,
		m.CommandsHandled,
		m.RepliesSent,
		m.TransactionsRecorded,
		m.BackgroundTasks,
		m.WebhookSignatureFailures,
		m.ParserFallbacks,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
