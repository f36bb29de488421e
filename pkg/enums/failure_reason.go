package enums

// FailureReason explains why an intent reached FAILED or EXPIRED.
type FailureReason string

const (
	FailureReasonDeclined        FailureReason = "DECLINED"
	FailureReasonTimeout         FailureReason = "TIMEOUT"
	FailureReasonTransport       FailureReason = "TRANSPORT"
	FailureReasonClientCancelled FailureReason = "CLIENT_CANCELLED"
	FailureReasonRetention       FailureReason = "RETENTION_EXPIRED"
)

// String implements fmt.Stringer.
func (f FailureReason) String() string {
	return string(f)
}
