package intents

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

// ProcessPaymentRequest is the intake payload. PaymentToken is the opaque
// vault reference; it is consumed here and never echoed back or persisted.
type ProcessPaymentRequest struct {
	AmountMinorUnits int64  `json:"amount_minor_units" validate:"required,gt=0"`
	Currency         string `json:"currency" validate:"required"`
	PaymentToken     string `json:"payment_token" validate:"required"`
	IdempotencyKey   string `json:"idempotency_key" validate:"required"`
}

// Result is the sanitized answer for an intake attempt. It carries no token
// material and no upstream error internals.
type Result struct {
	IntentID           uuid.UUID         `json:"intent_id"`
	State              enums.IntentState `json:"state"`
	ProcessorReference string            `json:"processor_reference,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	Replayed           bool              `json:"-"`
}

// IntentView is the lookup projection for GET requests.
type IntentView struct {
	IntentID           uuid.UUID         `json:"intent_id"`
	State              enums.IntentState `json:"state"`
	AmountMinorUnits   int64             `json:"amount_minor_units"`
	Currency           enums.Currency    `json:"currency"`
	ProcessorName      string            `json:"processor_name"`
	ProcessorReference string            `json:"processor_reference,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
}
