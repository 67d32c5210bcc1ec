package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks transaction state changes and gateway latency.
type LedgerMetrics struct {
	transitions *prometheus.CounterVec
	gatewayCall *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger collectors on reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_transaction_transitions_total",
		Help: "Transaction status transitions.",
	}, []string{"type", "from", "to"})
	gatewayCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commerce_gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"gateway", "operation"})
	reg.MustRegister(transitions, gatewayCall)
	return &LedgerMetrics{transitions: transitions, gatewayCall: gatewayCall}
}

func (l *LedgerMetrics) IncTransition(txType, from, to string) {
	if l == nil || l.transitions == nil {
		return
	}
	l.transitions.WithLabelValues(normalizeLabel(txType), normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (l *LedgerMetrics) ObserveGatewayCall(gateway, operation string, duration time.Duration) {
	if l == nil || l.gatewayCall == nil {
		return
	}
	l.gatewayCall.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation)).Observe(duration.Seconds())
}
