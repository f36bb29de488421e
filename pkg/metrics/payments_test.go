package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestChargeCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.ChargeAttempted("sandbox")
	m.ChargeAttempted("sandbox")
	m.ChargeObserved("sandbox", OutcomeConfirmed, 120*time.Millisecond)
	m.ChargeObserved("sandbox", OutcomeDeclined, 80*time.Millisecond)

	if got := testutil.ToFloat64(m.chargeAttempts.WithLabelValues("sandbox")); got != 2 {
		t.Fatalf("expected 2 attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.chargeOutcomes.WithLabelValues("sandbox", OutcomeConfirmed)); got != 1 {
		t.Fatalf("expected 1 confirmed outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.chargeOutcomes.WithLabelValues("sandbox", OutcomeDeclined)); got != 1 {
		t.Fatalf("expected 1 declined outcome, got %v", got)
	}
}

func TestSweepObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.SweepObserved(3, false)
	m.SweepObserved(0, true)

	if got := testutil.ToFloat64(m.sweeperRuns); got != 2 {
		t.Fatalf("expected 2 runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweeperExpired); got != 3 {
		t.Fatalf("expected 3 expired, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweeperErrors); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}
