package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker collectors, labelled by the guarded target.
var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "air593",
		Name:      "remote_breaker_state",
		Help:      "Breaker state per remote target: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "air593",
		Name:      "remote_breaker_transitions_total",
		Help:      "Breaker state changes per remote target.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "air593",
		Name:      "remote_breaker_opened_total",
		Help:      "Times a remote breaker tripped open.",
	}, []string{"target"})
)
