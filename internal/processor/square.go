package processor

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	pkgsquare "github.com/angelmondragon/paygate-backend/pkg/square"
	sq "github.com/square/square-go-sdk"
)

// squarePayments is the slice of the Square wrapper this adapter needs.
type squarePayments interface {
	CreatePayment(ctx context.Context, params pkgsquare.PaymentCreateParams) (*sq.Payment, error)
}

// Square adapts the Square Payments API to the gateway's charge surface.
type Square struct {
	api squarePayments
}

func NewSquare(api squarePayments) *Square {
	return &Square{api: api}
}

func (s *Square) Name() string {
	return "square"
}

func (s *Square) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	payment, err := s.api.CreatePayment(ctx, pkgsquare.PaymentCreateParams{
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency.String(),
		SourceID:         req.Token,
		IdempotencyKey:   req.IdempotencyKey,
		ReferenceID:      req.IntentID.String(),
	})
	if err != nil {
		// Square reports card declines as 4xx API errors; the wrapper maps
		// those onto the validation code.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			return ChargeResult{
				Status:        StatusDeclined,
				DeclineReason: "card_declined",
				Message:       typed.Message(),
			}, nil
		}
		return classifyFailure(err), nil
	}

	reference := derefString(payment.GetID())
	switch strings.ToUpper(derefString(payment.GetStatus())) {
	case "COMPLETED", "APPROVED":
		return ChargeResult{Status: StatusConfirmed, Reference: reference}, nil
	default:
		return ChargeResult{
			Status:        StatusDeclined,
			Reference:     reference,
			DeclineReason: strings.ToLower(derefString(payment.GetStatus())),
		}, nil
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
