package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	omise "github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/angelmondragon/paygate-backend/pkg/config"
)

// Omise adapts the Omise charge API. The SDK is not context-aware, so the
// call runs on its own goroutine and the caller's deadline wins the race.
type Omise struct {
	client *omise.Client
	do     func(op *operations.CreateCharge) (*omise.Charge, error)
}

func NewOmise(cfg config.OmiseConfig) (*Omise, error) {
	public := strings.TrimSpace(cfg.PublicKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if public == "" || secret == "" {
		return nil, errors.New("omise public and secret keys are required")
	}
	client, err := omise.NewClient(public, secret)
	if err != nil {
		return nil, fmt.Errorf("booting omise client: %w", err)
	}
	o := &Omise{client: client}
	o.do = o.createCharge
	return o, nil
}

func (o *Omise) Name() string {
	return "omise"
}

func (o *Omise) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	type answer struct {
		charge *omise.Charge
		err    error
	}
	done := make(chan answer, 1)
	go func() {
		charge, err := o.do(&operations.CreateCharge{
			Amount:      req.AmountMinorUnits,
			Currency:    req.Currency.String(),
			Card:        req.Token,
			Description: req.IntentID.String(),
		})
		done <- answer{charge: charge, err: err}
	}()

	select {
	case <-ctx.Done():
		return classifyFailure(ctx.Err()), nil
	case a := <-done:
		if a.err != nil {
			return classifyFailure(a.err), nil
		}
		if a.charge.Status == "successful" {
			return ChargeResult{Status: StatusConfirmed, Reference: a.charge.ID}, nil
		}
		return ChargeResult{
			Status:        StatusDeclined,
			Reference:     a.charge.ID,
			DeclineReason: derefString(a.charge.FailureCode),
			Message:       derefString(a.charge.FailureMessage),
		}, nil
	}
}

func (o *Omise) createCharge(op *operations.CreateCharge) (*omise.Charge, error) {
	charge := &omise.Charge{}
	if err := o.client.Do(charge, op); err != nil {
		return nil, err
	}
	return charge, nil
}
