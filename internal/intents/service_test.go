package intents

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/angelmondragon/paygate-backend/internal/processor"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/idempotency"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], _ = value.(string)
	return nil
}

func (m *memKV) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memKV) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:idempotency:%s:%s", scope, id)
}

func (m *memKV) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

type memStore struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*models.PaymentIntent
}

func newMemStore() *memStore {
	return &memStore{intents: make(map[uuid.UUID]*models.PaymentIntent)}
}

func (m *memStore) Create(_ context.Context, intent *models.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *intent
	m.intents[intent.ID] = &copied
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if intent, ok := m.intents[id]; ok {
		copied := *intent
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
}

func (m *memStore) Update(_ context.Context, intent *models.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *intent
	m.intents[intent.ID] = &copied
	return nil
}

type recordedEvent struct {
	Type   enums.LedgerEventType
	From   enums.IntentState
	To     enums.IntentState
	Detail string
}

type memLedger struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memLedger) Record(_ context.Context, intent *models.PaymentIntent, eventType enums.LedgerEventType, from enums.IntentState, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Type: eventType, From: from, To: intent.State, Detail: detail})
	return nil
}

func (m *memLedger) types() []enums.LedgerEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]enums.LedgerEventType, 0, len(m.events))
	for _, event := range m.events {
		out = append(out, event.Type)
	}
	return out
}

type scriptedProcessor struct {
	mu     sync.Mutex
	result processor.ChargeResult
	err    error
	calls  int
}

func (p *scriptedProcessor) Name() string { return "scripted" }

func (p *scriptedProcessor) Charge(_ context.Context, _ processor.ChargeRequest) (processor.ChargeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.result, p.err
}

func (p *scriptedProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	svc    *Service
	store  *memStore
	ledger *memLedger
	proc   *scriptedProcessor
	kv     *memKV
	idem   idempotency.Store
}

func newHarness(t *testing.T, result processor.ChargeResult) *harness {
	t.Helper()

	kv := newMemKV()
	idem, err := idempotency.NewRedisStore(kv, "intake", 24*time.Hour)
	if err != nil {
		t.Fatalf("new idempotency store: %v", err)
	}

	store := newMemStore()
	led := &memLedger{}
	proc := &scriptedProcessor{result: result}

	cfg := &config.Config{
		Gateway: config.GatewayConfig{
			MaxAmountMinorUnits:  10000000,
			Currencies:           []string{"USD", "EUR", "GBP"},
			ChargeTimeout:        time.Second,
			IdempotencyRetention: 24 * time.Hour,
			IntentRetention:      72 * time.Hour,
			MaxIdempotencyKeyLen: 128,
			MinTokenLen:          8,
			MaxTokenLen:          255,
		},
	}

	svc, err := NewService(ServiceParams{
		Config:      cfg,
		Logger:      logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard}),
		Repo:        store,
		Ledger:      led,
		Idempotency: idem,
		Processor:   proc,
		Metrics:     metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{svc: svc, store: store, ledger: led, proc: proc, kv: kv, idem: idem}
}

func testRequest() ProcessPaymentRequest {
	return ProcessPaymentRequest{
		AmountMinorUnits: 2500,
		Currency:         "USD",
		PaymentToken:     "tok_1J2K3L4M5N",
		IdempotencyKey:   "order-789-attempt-1",
	}
}

func TestProcessPaymentConfirmed(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusConfirmed, Reference: "pay_1"})
	ctx := context.Background()

	result, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != enums.IntentStateConfirmed || result.ProcessorReference != "pay_1" {
		t.Fatalf("unexpected result %+v", result)
	}

	stored, err := h.store.GetByID(ctx, result.IntentID)
	if err != nil {
		t.Fatalf("intent not stored: %v", err)
	}
	if stored.State != enums.IntentStateConfirmed || stored.CallerID != "caller-1" {
		t.Fatalf("unexpected stored intent %+v", stored)
	}
	if stored.TokenFingerprint == "" || stored.TokenFingerprint == "tok_1J2K3L4M5N" {
		t.Fatalf("raw token must never be stored, got %q", stored.TokenFingerprint)
	}

	wantEvents := []enums.LedgerEventType{
		enums.LedgerEventIntentCreated,
		enums.LedgerEventIntentValidated,
		enums.LedgerEventIntentSubmitted,
		enums.LedgerEventIntentConfirmed,
	}
	got := h.ledger.types()
	if len(got) != len(wantEvents) {
		t.Fatalf("ledger events %v, want %v", got, wantEvents)
	}
	for i := range wantEvents {
		if got[i] != wantEvents[i] {
			t.Fatalf("ledger events %v, want %v", got, wantEvents)
		}
	}
}

func TestProcessPaymentReplaysRecordedOutcome(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusConfirmed, Reference: "pay_1"})
	ctx := context.Background()

	first, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	second, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("second attempt should be a replay")
	}
	if second.IntentID != first.IntentID || second.ProcessorReference != first.ProcessorReference {
		t.Fatalf("replay must return the recorded outcome: %+v vs %+v", first, second)
	}
	if h.proc.callCount() != 1 {
		t.Fatalf("processor must be charged exactly once, got %d calls", h.proc.callCount())
	}
}

func TestProcessPaymentDeclineIsAnOutcome(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusDeclined, DeclineReason: "insufficient_funds"})
	ctx := context.Background()

	result, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if err != nil {
		t.Fatalf("declines are outcomes, not errors: %v", err)
	}
	if result.State != enums.IntentStateFailed || result.FailureReason != "DECLINED" {
		t.Fatalf("unexpected result %+v", result)
	}

	// The decline is durable: a retry replays it without a second charge.
	replay, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.State != enums.IntentStateFailed || h.proc.callCount() != 1 {
		t.Fatalf("decline replay misbehaved: %+v calls=%d", replay, h.proc.callCount())
	}
}

func TestProcessPaymentTimeout(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusError, ErrorKind: processor.ErrorKindTimeout, Message: "deadline exceeded"})
	ctx := context.Background()

	_, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstreamTimeout {
		t.Fatalf("expected upstream timeout error, got %v", err)
	}

	// The failure was recorded, so the retry replays FAILED instead of
	// charging again.
	replay, replayErr := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if replayErr != nil {
		t.Fatalf("replay after timeout: %v", replayErr)
	}
	if replay.State != enums.IntentStateFailed || replay.FailureReason != "TIMEOUT" {
		t.Fatalf("unexpected replay %+v", replay)
	}
	if h.proc.callCount() != 1 {
		t.Fatalf("processor must not be charged twice, got %d calls", h.proc.callCount())
	}
}

func TestProcessPaymentTransportFailure(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusError, ErrorKind: processor.ErrorKindTransport, Message: "connection reset"})

	_, err := h.svc.ProcessPayment(context.Background(), "caller-1", testRequest())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestProcessPaymentValidationFailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusConfirmed})

	req := testRequest()
	req.Currency = "XYZ"
	_, err := h.svc.ProcessPayment(context.Background(), "caller-1", req)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.kv.size() != 0 {
		t.Fatalf("invalid requests must not reserve idempotency keys")
	}
	if len(h.store.intents) != 0 {
		t.Fatalf("invalid requests must not create intents")
	}
	if h.proc.callCount() != 0 {
		t.Fatalf("invalid requests must not reach the processor")
	}
}

func TestProcessPaymentPendingDuplicateConflicts(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusConfirmed})
	ctx := context.Background()

	// Another request holds the reservation and has not completed.
	if _, _, err := h.idem.Reserve(ctx, testRequest().IdempotencyKey); err != nil {
		t.Fatalf("pre-reserve: %v", err)
	}

	_, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if h.proc.callCount() != 0 {
		t.Fatalf("conflicting requests must not reach the processor")
	}
}

func TestProcessPaymentCancelledBeforeSubmission(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusConfirmed, Reference: "pay_1"})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.ProcessPayment(cancelled, "caller-1", testRequest())
	if err == nil {
		t.Fatalf("cancelled request should not succeed")
	}
	if h.proc.callCount() != 0 {
		t.Fatalf("cancelled request must not reach the processor")
	}

	// The reservation was released, so a fresh attempt with the same key
	// proceeds normally.
	result, err := h.svc.ProcessPayment(context.Background(), "caller-1", testRequest())
	if err != nil {
		t.Fatalf("retry after cancellation: %v", err)
	}
	if result.State != enums.IntentStateConfirmed {
		t.Fatalf("retry should confirm, got %+v", result)
	}
}

func TestGetIntent(t *testing.T) {
	h := newHarness(t, processor.ChargeResult{Status: processor.StatusConfirmed, Reference: "pay_1"})
	ctx := context.Background()

	result, err := h.svc.ProcessPayment(ctx, "caller-1", testRequest())
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}

	view, err := h.svc.GetIntent(ctx, result.IntentID.String())
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if view.State != enums.IntentStateConfirmed || view.ProcessorReference != "pay_1" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.AmountMinorUnits != 2500 || view.Currency != enums.CurrencyUSD {
		t.Fatalf("unexpected view %+v", view)
	}

	if _, err := h.svc.GetIntent(ctx, "not-a-uuid"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("malformed id should be a validation error, got %v", err)
	}
	if _, err := h.svc.GetIntent(ctx, uuid.NewString()); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unknown id should be not found, got %v", err)
	}
}
