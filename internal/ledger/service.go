package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

type appender interface {
	Append(ctx context.Context, event *models.LedgerEvent) error
	ListByIntent(ctx context.Context, intentID uuid.UUID) ([]models.LedgerEvent, error)
}

// Service writes the audit trail of intent transitions. Every state change
// lands here with the amount rendered in display units for reconciliation.
type Service struct {
	repo   appender
	logger *logger.Logger
}

type ServiceParams struct {
	Repo   appender
	Logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("ledger repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("ledger logger is required")
	}
	return &Service{repo: params.Repo, logger: params.Logger}, nil
}

// Record appends one event for the transition the intent just made.
func (s *Service) Record(ctx context.Context, intent *models.PaymentIntent, eventType enums.LedgerEventType, from enums.IntentState, detail string) error {
	event := &models.LedgerEvent{
		ID:                 uuid.New(),
		IntentID:           intent.ID,
		Type:               eventType,
		FromState:          from,
		ToState:            intent.State,
		AmountMinorUnits:   intent.AmountMinorUnits,
		DisplayAmount:      DisplayAmount(intent.AmountMinorUnits, intent.Currency),
		Currency:           intent.Currency,
		ProcessorReference: intent.ProcessorReference,
	}
	if detail != "" {
		event.Detail = &detail
	}
	if err := s.repo.Append(ctx, event); err != nil {
		s.logger.Error(ctx, "appending ledger event", err)
		return err
	}
	return nil
}

// History returns the ordered trail for one intent.
func (s *Service) History(ctx context.Context, intentID uuid.UUID) ([]models.LedgerEvent, error) {
	return s.repo.ListByIntent(ctx, intentID)
}

// DisplayAmount renders minor units in major units with the currency's
// exponent: 1000 USD minor units -> "10.00", 1000 JPY -> "1000".
func DisplayAmount(minorUnits int64, currency enums.Currency) string {
	exponent := currency.MinorUnitExponent()
	return decimal.NewFromInt(minorUnits).Shift(-exponent).StringFixed(exponent)
}
