package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

// LedgerEvent is an append-only audit row for one intent state transition.
type LedgerEvent struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	IntentID           uuid.UUID             `gorm:"column:intent_id;type:uuid;not null;index"`
	Type               enums.LedgerEventType `gorm:"column:type;not null"`
	FromState          enums.IntentState     `gorm:"column:from_state;not null"`
	ToState            enums.IntentState     `gorm:"column:to_state;not null"`
	AmountMinorUnits   int64                 `gorm:"column:amount_minor_units;not null"`
	DisplayAmount      string                `gorm:"column:display_amount;not null"`
	Currency           enums.Currency        `gorm:"column:currency;not null"`
	ProcessorReference *string               `gorm:"column:processor_reference"`
	Detail             *string               `gorm:"column:detail"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
}
