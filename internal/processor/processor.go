package processor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/square"
)

// Status classifies the upstream answer to a charge submission.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusError     Status = "error"
)

// ErrorKind narrows StatusError results.
type ErrorKind string

const (
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindTransport ErrorKind = "transport"
)

// ChargeRequest is the single submission shape every adapter accepts.
type ChargeRequest struct {
	IntentID         uuid.UUID
	IdempotencyKey   string
	Token            string
	AmountMinorUnits int64
	Currency         enums.Currency
}

// ChargeResult is the normalized upstream answer. A decline is a successful
// round trip that the processor answered "no" to; only timeouts and transport
// failures carry an ErrorKind.
type ChargeResult struct {
	Status        Status
	Reference     string
	DeclineReason string
	ErrorKind     ErrorKind
	Message       string
}

// Client is one upstream processor adapter. One concrete adapter per
// processor; selection happens at startup via FromConfig.
type Client interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// FromConfig selects and boots the configured adapter.
func FromConfig(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Client, error) {
	switch kind := cfg.Processor.Normalized(); kind {
	case "sandbox":
		return NewSandbox(), nil
	case "square":
		sq, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("booting square adapter: %w", err)
		}
		return NewSquare(sq), nil
	case "stripe":
		return NewStripe(cfg.Stripe)
	case "omise":
		return NewOmise(cfg.Omise)
	default:
		return nil, fmt.Errorf("unknown processor %q", kind)
	}
}

// classifyFailure buckets a transport-level error into a timeout or transport
// result so callers map it onto the right gateway status.
func classifyFailure(err error) ChargeResult {
	kind := ErrorKindTransport
	if isTimeout(err) {
		kind = ErrorKindTimeout
	}
	return ChargeResult{
		Status:    StatusError,
		ErrorKind: kind,
		Message:   err.Error(),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
