package intents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/internal/processor"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/idempotency"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
)

type intentStore interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	Update(ctx context.Context, intent *models.PaymentIntent) error
}

type ledgerRecorder interface {
	Record(ctx context.Context, intent *models.PaymentIntent, eventType enums.LedgerEventType, from enums.IntentState, detail string) error
}

// Service orchestrates the intake path: validate, reserve the idempotency
// key, walk the intent lifecycle, submit upstream once, record the outcome.
type Service struct {
	cfg       *config.Config
	logger    *logger.Logger
	validator *RequestValidator
	repo      intentStore
	ledger    ledgerRecorder
	idem      idempotency.Store
	proc      processor.Client
	metrics   *metrics.PaymentMetrics
}

type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Repo        intentStore
	Ledger      ledgerRecorder
	Idempotency idempotency.Store
	Processor   processor.Client
	Metrics     *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("intents config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("intents logger is required")
	}
	if params.Repo == nil {
		return nil, errors.New("intents repo is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("intents ledger is required")
	}
	if params.Idempotency == nil {
		return nil, errors.New("intents idempotency store is required")
	}
	if params.Processor == nil {
		return nil, errors.New("intents processor is required")
	}
	if params.Metrics == nil {
		return nil, errors.New("intents metrics are required")
	}
	validator, err := NewRequestValidator(params.Config.Gateway)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       params.Config,
		logger:    params.Logger,
		validator: validator,
		repo:      params.Repo,
		ledger:    params.Ledger,
		idem:      params.Idempotency,
		proc:      params.Processor,
		metrics:   params.Metrics,
	}, nil
}

// ProcessPayment runs one intake attempt end to end. A decline is a valid
// outcome and returns a FAILED result with a nil error; only validation,
// contention, and upstream infrastructure problems surface as errors.
func (s *Service) ProcessPayment(ctx context.Context, callerID string, req ProcessPaymentRequest) (*Result, error) {
	if issues := s.validator.Validate(req); len(issues) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment request rejected").WithDetails(issues)
	}

	reservation, prior, err := s.idem.Reserve(ctx, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, idempotency.ErrPending) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is already in flight")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserving idempotency key")
	}
	if prior != nil {
		s.metrics.ReplayServed(s.proc.Name())
		s.logger.Info(s.logger.WithIntentID(ctx, prior.IntentID.String()), "replaying recorded outcome")
		return &Result{
			IntentID:           prior.IntentID,
			State:              prior.State,
			ProcessorReference: prior.ProcessorReference,
			FailureReason:      prior.FailureReason,
			Replayed:           true,
		}, nil
	}

	intent := &models.PaymentIntent{
		ID:               uuid.New(),
		IdempotencyKey:   req.IdempotencyKey,
		CallerID:         callerID,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         mustCurrency(req.Currency),
		TokenFingerprint: fingerprint(req.PaymentToken),
		State:            enums.IntentStateCreated,
		ProcessorName:    s.proc.Name(),
	}
	ctx = s.logger.WithIntentID(ctx, intent.ID.String())

	if err := s.repo.Create(ctx, intent); err != nil {
		s.release(ctx, reservation)
		return nil, err
	}
	s.record(ctx, intent, enums.LedgerEventIntentCreated, enums.IntentStateCreated, "")

	if err := s.advance(ctx, intent, enums.IntentStateValidated, enums.LedgerEventIntentValidated, ""); err != nil {
		s.release(ctx, reservation)
		return nil, err
	}

	// The upstream has not been contacted yet, so a gone client can still
	// abort cleanly and retry with the same key.
	if ctx.Err() != nil {
		s.fail(ctx, intent, enums.FailureReasonClientCancelled, "")
		s.release(ctx, reservation)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ctx.Err(), "request cancelled before submission")
	}

	if err := s.advance(ctx, intent, enums.IntentStateSubmitted, enums.LedgerEventIntentSubmitted, ""); err != nil {
		s.release(ctx, reservation)
		return nil, err
	}

	// Once submitted the charge must run to completion even if the client
	// disconnects; only the gateway's own timeout bounds it.
	chargeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Gateway.ChargeTimeout)
	defer cancel()

	s.metrics.ChargeAttempted(s.proc.Name())
	started := time.Now()
	chargeResult, chargeErr := s.proc.Charge(chargeCtx, processor.ChargeRequest{
		IntentID:         intent.ID,
		IdempotencyKey:   req.IdempotencyKey,
		Token:            req.PaymentToken,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         intent.Currency,
	})
	elapsed := time.Since(started)
	if chargeErr != nil {
		chargeResult = processor.ChargeResult{
			Status:    processor.StatusError,
			ErrorKind: processor.ErrorKindTransport,
			Message:   chargeErr.Error(),
		}
	}

	return s.settle(ctx, intent, chargeResult, elapsed)
}

// settle maps the upstream answer onto the intent, records the outcome for
// replays, and shapes the caller-facing result.
func (s *Service) settle(ctx context.Context, intent *models.PaymentIntent, chargeResult processor.ChargeResult, elapsed time.Duration) (*Result, error) {
	switch chargeResult.Status {
	case processor.StatusConfirmed:
		intent.ProcessorReference = &chargeResult.Reference
		if err := s.advance(ctx, intent, enums.IntentStateConfirmed, enums.LedgerEventIntentConfirmed, ""); err != nil {
			return nil, err
		}
		s.complete(ctx, intent)
		s.metrics.ChargeObserved(s.proc.Name(), metrics.OutcomeConfirmed, elapsed)
		s.logger.Info(ctx, "payment confirmed")
		return s.resultFor(intent), nil

	case processor.StatusDeclined:
		if chargeResult.Reference != "" {
			intent.ProcessorReference = &chargeResult.Reference
		}
		s.fail(ctx, intent, enums.FailureReasonDeclined, chargeResult.DeclineReason)
		s.complete(ctx, intent)
		s.metrics.ChargeObserved(s.proc.Name(), metrics.OutcomeDeclined, elapsed)
		s.logger.Info(s.logger.WithField(ctx, "decline_reason", chargeResult.DeclineReason), "payment declined")
		return s.resultFor(intent), nil

	default:
		reason := enums.FailureReasonTransport
		outcome := metrics.OutcomeTransport
		code := pkgerrors.CodeUpstream
		message := "processor unreachable"
		if chargeResult.ErrorKind == processor.ErrorKindTimeout {
			reason = enums.FailureReasonTimeout
			outcome = metrics.OutcomeTimeout
			code = pkgerrors.CodeUpstreamTimeout
			message = "processor did not answer within the charge timeout"
		}
		s.fail(ctx, intent, reason, "")
		s.complete(ctx, intent)
		s.metrics.ChargeObserved(s.proc.Name(), outcome, elapsed)
		s.logger.Error(ctx, "charge submission failed", errors.New(chargeResult.Message))
		return nil, pkgerrors.New(code, message).WithDetails(map[string]string{
			"intent_id": intent.ID.String(),
		})
	}
}

// GetIntent returns the lookup projection for one intent.
func (s *Service) GetIntent(ctx context.Context, rawID string) (*IntentView, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id must be a UUID")
	}
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &IntentView{
		IntentID:         intent.ID,
		State:            intent.State,
		AmountMinorUnits: intent.AmountMinorUnits,
		Currency:         intent.Currency,
		ProcessorName:    intent.ProcessorName,
		CreatedAt:        intent.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        intent.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if intent.ProcessorReference != nil {
		view.ProcessorReference = *intent.ProcessorReference
	}
	if intent.FailureReason != nil {
		view.FailureReason = intent.FailureReason.String()
	}
	return view, nil
}

func (s *Service) advance(ctx context.Context, intent *models.PaymentIntent, target enums.IntentState, event enums.LedgerEventType, detail string) error {
	from := intent.State
	next, moved, err := Advance(from, target)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "advancing intent")
	}
	if !moved {
		return nil
	}
	intent.State = next
	if err := s.repo.Update(ctx, intent); err != nil {
		return err
	}
	s.record(ctx, intent, event, from, detail)
	return nil
}

// fail moves the intent to FAILED with the given reason. Failures here are
// logged, not returned: the outcome is already decided.
func (s *Service) fail(ctx context.Context, intent *models.PaymentIntent, reason enums.FailureReason, detail string) {
	intent.FailureReason = &reason
	if detail == "" {
		detail = reason.String()
	}
	if err := s.advance(ctx, intent, enums.IntentStateFailed, enums.LedgerEventIntentFailed, detail); err != nil {
		s.logger.Error(ctx, "marking intent failed", err)
	}
}

func (s *Service) record(ctx context.Context, intent *models.PaymentIntent, event enums.LedgerEventType, from enums.IntentState, detail string) {
	if err := s.ledger.Record(ctx, intent, event, from, detail); err != nil {
		s.logger.Error(ctx, "recording ledger event", err)
	}
}

func (s *Service) complete(ctx context.Context, intent *models.PaymentIntent) {
	outcome := idempotency.Outcome{
		IntentID: intent.ID,
		State:    intent.State,
	}
	if intent.ProcessorReference != nil {
		outcome.ProcessorReference = *intent.ProcessorReference
	}
	if intent.FailureReason != nil {
		outcome.FailureReason = intent.FailureReason.String()
	}
	if err := s.idem.Complete(ctx, intent.IdempotencyKey, outcome); err != nil {
		s.logger.Error(ctx, "recording idempotency outcome", err)
	}
}

func (s *Service) release(ctx context.Context, reservation *idempotency.Reservation) {
	if err := s.idem.Release(ctx, reservation); err != nil && !errors.Is(err, idempotency.ErrNotReserved) {
		s.logger.Error(ctx, "releasing idempotency reservation", err)
	}
}

func (s *Service) resultFor(intent *models.PaymentIntent) *Result {
	result := &Result{
		IntentID: intent.ID,
		State:    intent.State,
	}
	if intent.ProcessorReference != nil {
		result.ProcessorReference = *intent.ProcessorReference
	}
	if intent.FailureReason != nil {
		result.FailureReason = intent.FailureReason.String()
	}
	return result
}

// mustCurrency is safe after validation has accepted the request.
func mustCurrency(raw string) enums.Currency {
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return enums.Currency(raw)
	}
	return currency
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
