package issuance

import (
	"errors"
	"fmt"
)

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrValidation        = errors.New("issuance: invalid request")
	ErrInvalidAddress    = errors.New("issuance: invalid ledger address")
	ErrInvalidCredential = errors.New("issuance: invalid credential")

	// Ledger 呼び出しの分類
	ErrLedgerUnavailable = errors.New("issuance: ledger unavailable")
	ErrLedgerRejected    = errors.New("issuance: ledger rejected operation")
	// ErrLedgerOutcomeUnknown marks a transaction that was broadcast but never confirmed.
	// It always travels together with ErrLedgerUnavailable and must not be retried.
	ErrLedgerOutcomeUnknown = errors.New("issuance: ledger outcome unknown")

	ErrPartialDistribution  = errors.New("issuance: partial distribution")
	ErrMetadataAttachFailed = errors.New("issuance: metadata attach failed after successful distribution")
	ErrReserveCustody       = errors.New("issuance: reserve key custody failed")

	ErrInvalidResumeToken      = errors.New("issuance: invalid resume token")
	ErrAttemptAlreadyProcessed = errors.New("issuance: attempt already processed")
	ErrAttemptNotFound         = errors.New("issuance: attempt not found")
	ErrAttemptExists           = errors.New("issuance: attempt already exists")
)

// ValidationError is returned for malformed requests before any ledger interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("issuance: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unavailable wraps err as a transient ledger failure of op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}

// Rejected wraps err as a semantic ledger rejection of op.
func Rejected(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedgerRejected, op, err)
}

// OutcomeUnknown wraps err for a broadcast transaction whose confirmation never arrived.
func OutcomeUnknown(op string, err error) error {
	return fmt.Errorf("%w: %w: %s: %w", ErrLedgerUnavailable, ErrLedgerOutcomeUnknown, op, err)
}

// FailureError describes a saga that stopped in Phase. Reason is one of the sentinels above.
type FailureError struct {
	Phase  Phase
	Reason error
	Cause  error
}

func (e *FailureError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("issuance failed in %s: %v", e.Phase, e.Reason)
	}
	return fmt.Sprintf("issuance failed in %s: %v: %v", e.Phase, e.Reason, e.Cause)
}

func (e *FailureError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Reason != nil {
		out = append(out, e.Reason)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// ReasonCode is the stable wire name of a failure reason.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialDistribution):
		return "partial_distribution"
	case errors.Is(err, ErrMetadataAttachFailed):
		return "metadata_attach_failed"
	case errors.Is(err, ErrReserveCustody):
		return "reserve_custody_failed"
	case errors.Is(err, ErrLedgerOutcomeUnknown):
		return "ledger_outcome_unknown"
	case errors.Is(err, ErrLedgerRejected):
		return "ledger_rejected"
	case errors.Is(err, ErrLedgerUnavailable):
		return "ledger_unavailable"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
