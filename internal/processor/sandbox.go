package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sandbox is a deterministic in-process adapter for local runs and tests. The
// token suffix selects the outcome, mirroring how hosted sandboxes use magic
// test values.
type Sandbox struct{}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Name() string {
	return "sandbox"
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	switch {
	case strings.HasSuffix(req.Token, "_declined"):
		return ChargeResult{
			Status:        StatusDeclined,
			DeclineReason: "generic_decline",
		}, nil
	case strings.HasSuffix(req.Token, "_insufficient"):
		return ChargeResult{
			Status:        StatusDeclined,
			DeclineReason: "insufficient_funds",
		}, nil
	case strings.HasSuffix(req.Token, "_timeout"):
		// Block until the caller's deadline fires, like a hung upstream.
		<-ctx.Done()
		return classifyFailure(ctx.Err()), nil
	case strings.HasSuffix(req.Token, "_transport"):
		return ChargeResult{
			Status:    StatusError,
			ErrorKind: ErrorKindTransport,
			Message:   "simulated connection reset",
		}, nil
	default:
		return ChargeResult{
			Status:    StatusConfirmed,
			Reference: fmt.Sprintf("sbx_%s", uuid.NewString()),
		}, nil
	}
}
