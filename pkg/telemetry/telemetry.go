// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry exposes Prometheus metrics for the connection and
// authorization flows.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for completed authorization attempts.
const (
	OutcomeSuccess             = "success"
	OutcomeStateInvalid        = "state_invalid"
	OutcomeProviderDenied      = "provider_denied"
	OutcomeExchangeFailed      = "exchange_failed"
	OutcomeIntrospectionFailed = "introspection_failed"
)

// Metrics holds the instrument set for one server process. All instruments
// are registered on a private registry so tests can create as many Metrics
// values as they like without collisions.
type Metrics struct {
	registry *prometheus.Registry

	connectionsCreated      *prometheus.CounterVec
	authorizationsStarted   prometheus.Counter
	authorizationsCompleted *prometheus.CounterVec
	toolsDiscovered         prometheus.Histogram
	apiKeysIssued           prometheus.Counter
}

// New creates a Metrics set with its own registry, including the standard Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		connectionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolbridge",
			Name:      "connections_created_total",
			Help:      "Connections created, by origin (template or custom).",
		}, []string{"origin"}),
		authorizationsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "toolbridge",
			Name:      "authorizations_started_total",
			Help:      "Authorization attempts started.",
		}),
		authorizationsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolbridge",
			Name:      "authorizations_completed_total",
			Help:      "Authorization callbacks handled, by outcome.",
		}, []string{"outcome"}),
		toolsDiscovered: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "toolbridge",
			Name:      "tools_discovered",
			Help:      "Tool catalog sizes observed during introspection.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		apiKeysIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "toolbridge",
			Name:      "api_keys_issued_total",
			Help:      "API keys issued.",
		}),
	}
}

// Handler returns the scrape handler for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectionCreated records a new connection. Nil-safe so callers can run
// without metrics wired.
func (m *Metrics) ConnectionCreated(fromTemplate bool) {
	if m == nil {
		return
	}
	origin := "custom"
	if fromTemplate {
		origin = "template"
	}
	m.connectionsCreated.WithLabelValues(origin).Inc()
}

// AuthorizationStarted records the start of an authorization attempt.
func (m *Metrics) AuthorizationStarted() {
	if m == nil {
		return
	}
	m.authorizationsStarted.Inc()
}

// AuthorizationCompleted records the outcome of a handled callback.
func (m *Metrics) AuthorizationCompleted(outcome string) {
	if m == nil {
		return
	}
	m.authorizationsCompleted.WithLabelValues(outcome).Inc()
}

// ToolsDiscovered records the size of a freshly introspected tool catalog.
func (m *Metrics) ToolsDiscovered(count int) {
	if m == nil {
		return
	}
	m.toolsDiscovered.Observe(float64(count))
}

// APIKeyIssued records a minted API key.
func (m *Metrics) APIKeyIssued() {
	if m == nil {
		return
	}
	m.apiKeysIssued.Inc()
}
