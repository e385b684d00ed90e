package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_transitions_total",
			Help: "Status transitions applied, by entity and target status",
		},
		[]string{"entity", "from", "to"},
	)

	staleEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_stale_events_total",
			Help: "Status events ignored because the entity was already past that state",
		},
		[]string{"entity", "reason"},
	)

	externalErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interaction_external_errors_total",
			Help: "Failures reported by external collaborators",
		},
		[]string{"service"},
	)

	externalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interaction_external_call_duration_seconds",
			Help:    "Latency of calls to external collaborators",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"service"},
	)
)

func Transition(entity, from, to string) {
	transitionsTotal.WithLabelValues(entity, from, to).Inc()
}

func StaleEvent(entity, reason string) {
	staleEventsTotal.WithLabelValues(entity, reason).Inc()
}

func ExternalError(service string) {
	externalErrorsTotal.WithLabelValues(service).Inc()
}

// ExternalTimer starts a latency observation; call the returned func when the
// external call returns.
func ExternalTimer(service string) func() {
	t := prometheus.NewTimer(externalDuration.WithLabelValues(service))
	return func() { t.ObserveDuration() }
}
