package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/paygate-backend/api/controllers"
	"github.com/angelmondragon/paygate-backend/internal/intents"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/security"
)

type stubService struct {
	result *intents.Result
	view   *intents.IntentView
	calls  int
}

func (s *stubService) ProcessPayment(context.Context, string, intents.ProcessPaymentRequest) (*intents.Result, error) {
	s.calls++
	return s.result, nil
}

func (s *stubService) GetIntent(context.Context, string) (*intents.IntentView, error) {
	return s.view, nil
}

func newTestRouter(t *testing.T, svc *stubService) (http.Handler, *security.Antiforgery) {
	t.Helper()

	af, err := security.NewAntiforgery("router-test-secret", "paygate-test", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewAntiforgery: %v", err)
	}
	payments, err := controllers.NewPaymentsController(svc, nil)
	if err != nil {
		t.Fatalf("NewPaymentsController: %v", err)
	}
	tokens, err := controllers.NewTokensController(af, nil)
	if err != nil {
		t.Fatalf("NewTokensController: %v", err)
	}

	router := New(RouterParams{
		Config:      &config.Config{},
		Payments:    payments,
		Tokens:      tokens,
		Health:      controllers.NewHealthController(nil, nil, nil),
		Antiforgery: af,
		Registry:    prometheus.NewRegistry(),
	})
	return router, af
}

func TestRouterHealthAndMetricsAreOpen(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouterIntakeRequiresAuthentication(t *testing.T) {
	svc := &stubService{}
	router, _ := newTestRouter(t, svc)

	body := `{"amount_minor_units":2500,"currency":"USD","payment_token":"tok_x","idempotency_key":"k"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/process-payment", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service should not be reached without credentials")
	}
}

func TestRouterTokenThenPaymentFlow(t *testing.T) {
	svc := &stubService{
		result: &intents.Result{IntentID: uuid.New(), State: enums.IntentStateConfirmed},
	}
	router, _ := newTestRouter(t, svc)

	tokenReq := httptest.NewRequest(http.MethodGet, "/v1/antiforgery-token", nil)
	tokenReq.Header.Set(security.HeaderSessionID, "sess-flow")
	tokenRec := httptest.NewRecorder()
	router.ServeHTTP(tokenRec, tokenReq)

	if tokenRec.Code != http.StatusOK {
		t.Fatalf("token status = %d, want 200", tokenRec.Code)
	}
	var tokenPayload map[string]string
	if err := json.NewDecoder(tokenRec.Body).Decode(&tokenPayload); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}

	body := `{"amount_minor_units":2500,"currency":"USD","payment_token":"tok_live_abc","idempotency_key":"k-1"}`
	payReq := httptest.NewRequest(http.MethodPost, "/v1/process-payment", strings.NewReader(body))
	payReq.Header.Set(security.HeaderSessionID, "sess-flow")
	payReq.Header.Set(security.HeaderAntiforgeryToken, tokenPayload["antiforgery_token"])
	payRec := httptest.NewRecorder()
	router.ServeHTTP(payRec, payReq)

	if payRec.Code != http.StatusOK {
		t.Fatalf("payment status = %d, want 200: %s", payRec.Code, payRec.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("service calls = %d, want 1", svc.calls)
	}
}

func TestRouterGetIntentAuthenticated(t *testing.T) {
	intentID := uuid.New()
	svc := &stubService{
		view: &intents.IntentView{IntentID: intentID, State: enums.IntentStateConfirmed},
	}
	router, af := newTestRouter(t, svc)

	token, err := af.Mint("sess-get")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/payment-intents/"+intentID.String(), nil)
	req.Header.Set(security.HeaderSessionID, "sess-get")
	req.Header.Set(security.HeaderAntiforgeryToken, token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
