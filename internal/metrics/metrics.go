// Package metrics exposes the service's prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcome label values.
const (
	OutcomeSuccess      = "success"
	OutcomeTokenInvalid = "token_invalid"
	OutcomeSiweFailed   = "siwe_failed"
	OutcomeReplayed     = "replayed"
	OutcomeGateDenied   = "gate_denied"
	OutcomeServerError  = "server_error"
)

// Metrics holds the counters for the authentication flow.
type Metrics struct {
	ChallengesIssued prometheus.Counter
	Logins           *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the metric set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletgate_challenges_issued_total",
			Help: "Number of SIWE challenges issued.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "walletgate_logins_total",
			Help: "Number of login attempts by outcome.",
		}, []string{"outcome"}),
		registry: registry,
	}
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
