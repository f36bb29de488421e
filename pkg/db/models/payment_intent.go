package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

// PaymentIntent records one attempt to charge a payer. The raw payment token
// is never stored; only its fingerprint survives for correlation.
type PaymentIntent struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	IdempotencyKey     string               `gorm:"column:idempotency_key;not null;uniqueIndex:ux_payment_intents_idempotency_key"`
	CallerID           string               `gorm:"column:caller_id;not null;index"`
	AmountMinorUnits   int64                `gorm:"column:amount_minor_units;not null"`
	Currency           enums.Currency       `gorm:"column:currency;not null"`
	TokenFingerprint   string               `gorm:"column:token_fingerprint;not null"`
	State              enums.IntentState    `gorm:"column:state;not null;default:'CREATED';index"`
	ProcessorName      string               `gorm:"column:processor_name;not null"`
	ProcessorReference *string              `gorm:"column:processor_reference"`
	FailureReason      *enums.FailureReason `gorm:"column:failure_reason"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
