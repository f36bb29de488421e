package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/paygate-backend/api/middleware"
	"github.com/angelmondragon/paygate-backend/api/responses"
	"github.com/angelmondragon/paygate-backend/api/validators"
	"github.com/angelmondragon/paygate-backend/internal/intents"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

type paymentService interface {
	ProcessPayment(ctx context.Context, callerID string, req intents.ProcessPaymentRequest) (*intents.Result, error)
	GetIntent(ctx context.Context, rawID string) (*intents.IntentView, error)
}

// PaymentsController exposes the intake surface: submit a payment request,
// look up the resulting intent.
type PaymentsController struct {
	service paymentService
	logger  *logger.Logger
}

func NewPaymentsController(service paymentService, logg *logger.Logger) (*PaymentsController, error) {
	if service == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments controller requires a service")
	}
	return &PaymentsController{service: service, logger: logg}, nil
}

// ProcessPayment handles POST /v1/process-payment. Replays and declines both
// answer 200; only transport-level upstream failures surface as 5xx.
func (c *PaymentsController) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req intents.ProcessPaymentRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logger, w, err)
		return
	}

	callerID := middleware.CallerIDFromContext(ctx)
	if callerID == "" {
		responses.WriteError(ctx, c.logger, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
		return
	}

	result, err := c.service.ProcessPayment(ctx, callerID, req)
	if err != nil {
		responses.WriteError(ctx, c.logger, w, err)
		return
	}

	responses.WriteJSON(w, http.StatusOK, result)
}

// GetIntent handles GET /v1/payment-intents/{intentID}.
func (c *PaymentsController) GetIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := c.service.GetIntent(ctx, chi.URLParam(r, "intentID"))
	if err != nil {
		responses.WriteError(ctx, c.logger, w, err)
		return
	}

	responses.WriteJSON(w, http.StatusOK, view)
}
