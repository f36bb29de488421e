package intents

import (
	"fmt"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

// transitions is the full lifecycle: CREATED -> VALIDATED -> SUBMITTED ->
// {CONFIRMED, FAILED}. Any non-terminal state may fail or expire.
var transitions = map[enums.IntentState][]enums.IntentState{
	enums.IntentStateCreated:   {enums.IntentStateValidated, enums.IntentStateFailed, enums.IntentStateExpired},
	enums.IntentStateValidated: {enums.IntentStateSubmitted, enums.IntentStateFailed, enums.IntentStateExpired},
	enums.IntentStateSubmitted: {enums.IntentStateConfirmed, enums.IntentStateFailed, enums.IntentStateExpired},
}

// InvalidTransitionError reports a lifecycle move the machine forbids.
type InvalidTransitionError struct {
	From enums.IntentState
	To   enums.IntentState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid intent transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether the move is allowed.
func CanTransition(from, to enums.IntentState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Advance computes the next state. Re-applying the current state is a no-op,
// not an error, so retried updates stay safe. The returned bool reports
// whether the state actually moved.
func Advance(current, target enums.IntentState) (enums.IntentState, bool, error) {
	if current == target {
		return current, false, nil
	}
	if !CanTransition(current, target) {
		return current, false, &InvalidTransitionError{From: current, To: target}
	}
	return target, true, nil
}
