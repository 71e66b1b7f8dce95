// internal/application/issuance/outcome.go
package issuance

import (
	"errors"
	"fmt"

	issuancedom "tokenissuer/internal/domain/issuance"
)

// OutcomeStatus は Start / Resume の結果種別です。
type OutcomeStatus string

const (
	StatusCompleted         OutcomeStatus = "completed"
	StatusAwaitingFunds     OutcomeStatus = "awaiting_funds"
	StatusInsufficientFunds OutcomeStatus = "insufficient_funds"
	StatusFailed            OutcomeStatus = "failed"
)

// Outcome is what one Start or Resume call produced.
//
//   - completed: every artifact is set.
//   - awaiting_funds / insufficient_funds: ResumeToken, PayerAddress, Balance and
//     RequiredBalance are set; nothing was written to the ledger.
//   - failed: Failure is set together with whatever artifacts exist.
type Outcome struct {
	Status    OutcomeStatus
	AttemptID string
	Network   issuancedom.Network

	PayerAddress    string
	ResumeToken     string
	Balance         uint64
	RequiredBalance uint64
	Request         issuancedom.RequestInput

	Mint         *issuancedom.MintResult
	Distribution *issuancedom.DistributionResult
	Metadata     *issuancedom.MetadataAttachment
	ReserveOwner string

	Failure  *issuancedom.FailureError
	Warnings []string
}

func (o *Outcome) warn(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

func (o *Outcome) absorb(a issuancedom.Attempt) {
	o.Mint = a.Mint
	o.Distribution = a.Distribution
	o.Metadata = a.Metadata
	o.ReserveOwner = a.ReserveOwner
}

// AlreadyProcessedError is returned by Resume when the attempt left AwaitingFunds
// before this call. Attempt is the stored record.
type AlreadyProcessedError struct {
	Attempt issuancedom.Attempt
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%v: attempt %s is %s", issuancedom.ErrAttemptAlreadyProcessed, e.Attempt.ID, e.Attempt.Phase)
}

func (e *AlreadyProcessedError) Is(target error) bool {
	return target == issuancedom.ErrAttemptAlreadyProcessed
}

// ErrNetworkNotConfigured is returned when no ledger was wired for the requested network.
var ErrNetworkNotConfigured = errors.New("issuance: network not configured")
