package enums

// LedgerEventType labels entries in the audit trail of intent transitions.
type LedgerEventType string

const (
	LedgerEventIntentCreated   LedgerEventType = "intent.created"
	LedgerEventIntentValidated LedgerEventType = "intent.validated"
	LedgerEventIntentSubmitted LedgerEventType = "intent.submitted"
	LedgerEventIntentConfirmed LedgerEventType = "intent.confirmed"
	LedgerEventIntentFailed    LedgerEventType = "intent.failed"
	LedgerEventIntentExpired   LedgerEventType = "intent.expired"
)

// String implements fmt.Stringer.
func (t LedgerEventType) String() string {
	return string(t)
}
