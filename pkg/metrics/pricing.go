package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics tracks order recalculations.
type PricingMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewPricingMetrics registers the recalculation collectors on reg. A nil
// registerer yields a no-op recorder.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commerce_order_recalculation_duration_seconds",
		Help:    "Duration of order recalculations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_order_recalculations_total",
		Help: "Order recalculations by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, outcomes)
	return &PricingMetrics{duration: duration, outcomes: outcomes}
}

// ObserveRecalculation records one recalculation and its outcome label
// (ok, conflict, unresolved_rate, error, completed).
func (p *PricingMetrics) ObserveRecalculation(outcome string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	p.duration.WithLabelValues(label).Observe(duration.Seconds())
	p.outcomes.WithLabelValues(label).Inc()
}
