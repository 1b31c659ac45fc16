package pricing

import (
	"errors"
	"fmt"
)

// SignalReason classifies why a source contributed no signal. The
// distinction matters for tuning: a DNS failure, a timeout, and a rate
// limit all degrade to "no signal" but are logged separately.
type SignalReason string

const (
	ReasonDNSFailure  SignalReason = "dns_failure"
	ReasonTimeout     SignalReason = "timeout"
	ReasonHTTPError   SignalReason = "http_error"
	ReasonRateLimited SignalReason = "rate_limited"
	ReasonNoData      SignalReason = "no_data"
	ReasonUnavailable SignalReason = "unavailable"
)

// SignalError is a structured error from an external price source.
// Collectors never propagate these; they log the reason and move on.
type SignalError struct {
	Reason      SignalReason
	Op          string
	Recoverable bool
	Err         error
}

func (e *SignalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *SignalError) Unwrap() error { return e.Err }

// NewSignalError wraps an external failure with its classified reason.
func NewSignalError(op string, reason SignalReason, err error) *SignalError {
	return &SignalError{
		Reason:      reason,
		Op:          op,
		Recoverable: reason != ReasonDNSFailure,
		Err:         err,
	}
}

// ReasonOf extracts the signal reason from an error chain, defaulting
// to unavailable for unclassified failures.
func ReasonOf(err error) SignalReason {
	var se *SignalError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ReasonUnavailable
}
