package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Charge outcome label values.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeDeclined  = "declined"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport"
	OutcomeReplayed  = "replayed"
)

// PaymentMetrics instruments the intake path and the retention sweeper.
type PaymentMetrics struct {
	chargeAttempts   *prometheus.CounterVec
	chargeOutcomes   *prometheus.CounterVec
	processorLatency *prometheus.HistogramVec

	sweeperRuns    prometheus.Counter
	sweeperExpired prometheus.Counter
	sweeperErrors  prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		chargeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "charge_attempts_total",
			Help:      "Charge submissions sent upstream, per processor.",
		}, []string{"processor"}),
		chargeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "charge_outcomes_total",
			Help:      "Recorded charge outcomes, per processor and outcome.",
		}, []string{"processor", "outcome"}),
		processorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paygate",
			Name:      "processor_latency_seconds",
			Help:      "Upstream processor round-trip latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"processor"}),
		sweeperRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "sweeper_runs_total",
			Help:      "Retention sweeper executions.",
		}),
		sweeperExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "sweeper_expired_intents_total",
			Help:      "Intents moved to EXPIRED by the retention sweeper.",
		}),
		sweeperErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "sweeper_errors_total",
			Help:      "Retention sweeper failures.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.chargeAttempts,
			m.chargeOutcomes,
			m.processorLatency,
			m.sweeperRuns,
			m.sweeperExpired,
			m.sweeperErrors,
		)
	}
	return m
}

// ChargeAttempted counts one upstream submission.
func (m *PaymentMetrics) ChargeAttempted(processor string) {
	m.chargeAttempts.WithLabelValues(processor).Inc()
}

// ChargeObserved records the outcome and upstream latency of one submission.
func (m *PaymentMetrics) ChargeObserved(processor, outcome string, elapsed time.Duration) {
	m.chargeOutcomes.WithLabelValues(processor, outcome).Inc()
	m.processorLatency.WithLabelValues(processor).Observe(elapsed.Seconds())
}

// ReplayServed counts a request answered from the idempotency store.
func (m *PaymentMetrics) ReplayServed(processor string) {
	m.chargeOutcomes.WithLabelValues(processor, OutcomeReplayed).Inc()
}

// SweepObserved records one sweeper run.
func (m *PaymentMetrics) SweepObserved(expired int, failed bool) {
	m.sweeperRuns.Inc()
	m.sweeperExpired.Add(float64(expired))
	if failed {
		m.sweeperErrors.Inc()
	}
}
