package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/paygate-backend/internal/intents"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
)

const (
	defaultBatchSize = 200
	maxBatchesPerRun = 10
)

type staleIntentStore interface {
	FindStaleNonTerminal(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
	Update(ctx context.Context, intent *models.PaymentIntent) error
}

type ledgerRecorder interface {
	Record(ctx context.Context, intent *models.PaymentIntent, eventType enums.LedgerEventType, from enums.IntentState, detail string) error
}

// IntentTTLJobParams configure the retention sweeper.
type IntentTTLJobParams struct {
	Logger    *logger.Logger
	Intents   staleIntentStore
	Ledger    ledgerRecorder
	Metrics   *metrics.PaymentMetrics
	Retention time.Duration
	BatchSize int
}

// NewIntentTTLJob builds the job that expires intents stuck in a non-terminal
// state past the retention window. Expiry is terminal; replays of those keys
// are already gone from the idempotency store by then.
func NewIntentTTLJob(params IntentTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &intentTTLJob{
		logg:      params.Logger,
		intents:   params.Intents,
		ledger:    params.Ledger,
		metrics:   params.Metrics,
		retention: params.Retention,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type intentTTLJob struct {
	logg      *logger.Logger
	intents   staleIntentStore
	ledger    ledgerRecorder
	metrics   *metrics.PaymentMetrics
	retention time.Duration
	batchSize int
	now       func() time.Time
}

func (j *intentTTLJob) Name() string {
	return "intent_ttl"
}

func (j *intentTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	expired := 0
	var errs error

	for batch := 0; batch < maxBatchesPerRun; batch++ {
		stale, err := j.intents.FindStaleNonTerminal(ctx, cutoff, j.batchSize)
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if len(stale) == 0 {
			break
		}
		for i := range stale {
			if err := j.expire(ctx, &stale[i]); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			expired++
		}
		if len(stale) < j.batchSize {
			break
		}
	}

	if j.metrics != nil {
		j.metrics.SweepObserved(expired, errs != nil)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "stale intents expired")
	}
	return errs
}

func (j *intentTTLJob) expire(ctx context.Context, intent *models.PaymentIntent) error {
	from := intent.State
	next, moved, err := intents.Advance(from, enums.IntentStateExpired)
	if err != nil || !moved {
		return err
	}
	intent.State = next
	reason := enums.FailureReasonRetention
	intent.FailureReason = &reason

	if err := j.intents.Update(ctx, intent); err != nil {
		return fmt.Errorf("expiring intent %s: %w", intent.ID, err)
	}
	if err := j.ledger.Record(ctx, intent, enums.LedgerEventIntentExpired, from, reason.String()); err != nil {
		return fmt.Errorf("recording expiry for intent %s: %w", intent.ID, err)
	}
	return nil
}
