package processor

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/paygate-backend/pkg/config"
)

// Stripe adapts the PaymentIntents API. Each gateway charge creates and
// confirms one Stripe payment intent in a single call.
type Stripe struct {
	create func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripe(cfg config.StripeConfig) (*Stripe, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("stripe api key is required")
	}
	stripe.Key = key
	return &Stripe{create: paymentintent.New}, nil
}

func (s *Stripe) Name() string {
	return "stripe"
}

func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinorUnits),
		Currency:      stripe.String(strings.ToLower(req.Currency.String())),
		PaymentMethod: stripe.String(req.Token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	intent, err := s.create(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			reason := string(stripeErr.DeclineCode)
			if reason == "" {
				reason = string(stripeErr.Code)
			}
			reference := ""
			if stripeErr.PaymentIntent != nil {
				reference = stripeErr.PaymentIntent.ID
			}
			return ChargeResult{
				Status:        StatusDeclined,
				Reference:     reference,
				DeclineReason: reason,
				Message:       stripeErr.Msg,
			}, nil
		}
		return classifyFailure(err), nil
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return ChargeResult{Status: StatusConfirmed, Reference: intent.ID}, nil
	default:
		return ChargeResult{
			Status:        StatusDeclined,
			Reference:     intent.ID,
			DeclineReason: string(intent.Status),
		}, nil
	}
}
