package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts what the producers do. Each Metrics owns its registry so tests and
// repeated runs in one process never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	Interactions      *prometheus.CounterVec
	InteractionErrors *prometheus.CounterVec
	Events            *prometheus.CounterVec
	Flushes           *prometheus.CounterVec
	StatusChecks      *prometheus.CounterVec
	RolloutActive     *prometheus.GaugeVec
	Outcomes          *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "togglegen_interactions_total",
				Help: "Synthetic interactions processed",
			},
			[]string{"producer"},
		),
		InteractionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "togglegen_interaction_errors_total",
				Help: "Interactions abandoned because evaluation or tracking failed",
			},
			[]string{"producer"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "togglegen_events_total",
				Help: "Metric events handed to the SDK event buffer",
			},
			[]string{"producer", "metric"},
		),
		Flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "togglegen_flushes_total",
				Help: "Event buffer flushes requested",
			},
			[]string{"producer"},
		),
		StatusChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "togglegen_rollout_status_checks_total",
				Help: "Rollout status probes by result",
			},
			[]string{"flag", "result"},
		),
		RolloutActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "togglegen_rollout_active",
				Help: "1 while the last probe saw an active measured rollout",
			},
			[]string{"flag"},
		),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "togglegen_producer_outcomes_total",
				Help: "Terminal producer states",
			},
			[]string{"producer", "outcome"},
		),
	}
	m.Registry.MustRegister(
		m.Interactions, m.InteractionErrors, m.Events, m.Flushes,
		m.StatusChecks, m.RolloutActive, m.Outcomes,
	)
	return m
}

// ObserveStatus records one rollout probe.
func (m *Metrics) ObserveStatus(flag string, active bool) {
	if m == nil {
		return
	}
	result, gauge := "inactive", 0.0
	if active {
		result, gauge = "active", 1.0
	}
	m.StatusChecks.WithLabelValues(flag, result).Inc()
	m.RolloutActive.WithLabelValues(flag).Set(gauge)
}

// Router serves /metrics and /healthz.
func Router(m *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return r
}
