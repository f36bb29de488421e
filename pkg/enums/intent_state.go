package enums

import "fmt"

// IntentState tracks the lifecycle of a payment intent.
type IntentState string

const (
	IntentStateCreated   IntentState = "CREATED"
	IntentStateValidated IntentState = "VALIDATED"
	IntentStateSubmitted IntentState = "SUBMITTED"
	IntentStateConfirmed IntentState = "CONFIRMED"
	IntentStateFailed    IntentState = "FAILED"
	IntentStateExpired   IntentState = "EXPIRED"
)

var validIntentStates = []IntentState{
	IntentStateCreated,
	IntentStateValidated,
	IntentStateSubmitted,
	IntentStateConfirmed,
	IntentStateFailed,
	IntentStateExpired,
}

// String implements fmt.Stringer.
func (s IntentState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known IntentState.
func (s IntentState) IsValid() bool {
	for _, candidate := range validIntentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state ends the intent lifecycle.
func (s IntentState) IsTerminal() bool {
	switch s {
	case IntentStateConfirmed, IntentStateFailed, IntentStateExpired:
		return true
	}
	return false
}

// ParseIntentState converts raw input into an IntentState.
func ParseIntentState(value string) (IntentState, error) {
	for _, candidate := range validIntentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent state %q", value)
}
