package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	planRequests    prometheus.Counter
	refactorRequest prometheus.Counter
	refactorFiles   *prometheus.CounterVec
}

// NewMetrics registers the service counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		planRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plan_requests_total",
			Help: "Total /plan requests",
		}),
		refactorRequest: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refactor_requests_total",
			Help: "Total /refactor requests",
		}),
		refactorFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refactor_files_total",
			Help: "Files processed by outcome",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.planRequests, m.refactorRequest, m.refactorFiles)
	return m
}

// ObserveFile counts one processed file. It matches refactor.Options.OnFileOutcome.
func (m *Metrics) ObserveFile(outcome string) {
	m.refactorFiles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
