// Package metrics carries the ambient prometheus instrumentation the
// teacher's data_pipeline_engine.go and order_service carry regardless of
// which feature surfaces are in scope — observability is not one of the
// spec's excluded features, it is an ambient concern (SPEC_FULL.md).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retailing_offers_generated_total",
		Help: "Offers written by the OfferGenerator, by airline.",
	}, []string{"airline_id"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retailing_order_transitions_total",
		Help: "OrderEngine state transitions, by resulting status.",
	}, []string{"status"})

	HoldAcquisitionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retailing_hold_acquisition_failures_total",
		Help: "Stage-2 hold acquisitions that failed, by reason.",
	}, []string{"reason"})

	ExpirySweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retailing_expiry_sweep_duration_seconds",
		Help:    "Wall-clock duration of each ExpiryWorker sweep.",
		Buckets: prometheus.DefBuckets,
	})

	ExpirySweepExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailing_expiry_sweep_orders_expired_total",
		Help: "Orders transitioned to EXPIRED by the sweep.",
	})

	PricingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retailing_pricing_duration_seconds",
		Help:    "PricingEngine.Price evaluation latency.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
	})
)
