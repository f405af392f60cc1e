package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal *prometheus.CounterVec
	// CheckoutSubmissionsTotal counts order submissions by outcome.
	CheckoutSubmissionsTotal *prometheus.CounterVec
	// CheckoutSubmitLatency records order submission latency in milliseconds.
	CheckoutSubmitLatency *prometheus.HistogramVec
	// CartMutationsTotal counts cart changes by operation.
	CartMutationsTotal *prometheus.CounterVec
	// EventsPublishedTotal counts domain event fan-out per sink and outcome.
	EventsPublishedTotal *prometheus.CounterVec
	// ReceiptsSentTotal counts receipt email jobs processed by the worker.
	ReceiptsSentTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Count of login attempts by outcome.",
		}, []string{"result"})
		CheckoutSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submissions_total",
			Help:      "Count of order submissions by outcome.",
		}, []string{"result"})
		CheckoutSubmitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_submit_duration_ms",
			Help:      "Latency of order submissions to the remote store in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation.",
		}, []string{"op"})
		EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Count of domain events handed to each sink by outcome.",
		}, []string{"sink", "result"})
		ReceiptsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_sent_total",
			Help:      "Count of receipt emails processed by outcome.",
		}, []string{"result"})

		for _, c := range []**prometheus.CounterVec{
			&LoginAttemptsTotal, &CheckoutSubmissionsTotal, &CartMutationsTotal,
			&EventsPublishedTotal, &ReceiptsSentTotal,
		} {
			target := c
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
		mustRegisterCollector(reg, CheckoutSubmitLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CheckoutSubmitLatency = v
			}
		})
	})
}

// Inc increments a labelled counter when it has been registered.
func Inc(c *prometheus.CounterVec, labels ...string) {
	if c == nil {
		return
	}
	c.WithLabelValues(labels...).Inc()
}

// Observe records v on a labelled histogram when it has been registered.
func Observe(h *prometheus.HistogramVec, v float64, labels ...string) {
	if h == nil {
		return
	}
	h.WithLabelValues(labels...).Observe(v)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
