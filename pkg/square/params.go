package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// PaymentCreateParams encapsulates the inputs for a Square payment. SourceID
// carries the opaque payment token; it never leaves this process in logs.
type PaymentCreateParams struct {
	AmountMinorUnits int64
	Currency         string
	SourceID         string
	IdempotencyKey   string
	ReferenceID      string
}

func (p PaymentCreateParams) toSquareRequest(locationID string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: p.IdempotencyKey,
		LocationID:     ptrString(locationID),
		SourceID:       p.SourceID,
	}
	if p.AmountMinorUnits > 0 {
		req.AmountMoney = moneyPtr(p.AmountMinorUnits, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
