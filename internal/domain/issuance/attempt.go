// internal/domain/issuance/attempt.go
package issuance

import (
	"encoding/json"
	"log"
	"math/big"
	"strings"
	"time"
)

// ------------------------------------------------------
// Phase
// ------------------------------------------------------

type Phase string

const (
	PhaseAwaitingFunds     Phase = "awaiting_funds"
	PhaseMinting           Phase = "minting"
	PhaseDistributing      Phase = "distributing"
	PhaseAttachingMetadata Phase = "attaching_metadata"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

func (p Phase) String() string { return string(p) }

// Terminal reports Completed / Failed.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ------------------------------------------------------
// Artifacts
// ------------------------------------------------------

// MintResult is produced once by the Minting step.
type MintResult struct {
	MintAddress string `json:"mintAddress"`
	Decimals    uint8  `json:"decimals"`
}

// DistributionResult holds both share accounts. While the reserve mint-to has not
// succeeded ReserveTokenAccount stays empty.
type DistributionResult struct {
	UserTokenAccount    string   `json:"userTokenAccount"`
	ReserveTokenAccount string   `json:"reserveTokenAccount,omitempty"`
	UserShare           *big.Int `json:"userShare"`
	ReserveShare        *big.Int `json:"reserveShare"`
}

// Complete reports whether both mint-to operations landed.
func (d DistributionResult) Complete() bool {
	return d.UserTokenAccount != "" && d.ReserveTokenAccount != ""
}

// MetadataAttachment is recomputable from the mint; TxID is set once the attach confirmed.
type MetadataAttachment struct {
	Address string `json:"metadataAddress"`
	TxID    string `json:"transactionId,omitempty"`
}

// MetadataFields are the Metaplex DataV2 fields written for the mint.
type MetadataFields struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	IsMutable            bool
}

// MetadataFieldsFor builds the supply-chain fields: zero seller fee, no creators.
func MetadataFieldsFor(r Request) MetadataFields {
	return MetadataFields{
		Name:                 r.Name(),
		Symbol:               r.Symbol(),
		URI:                  r.MetadataURI(),
		SellerFeeBasisPoints: 0,
		IsMutable:            true,
	}
}

// ------------------------------------------------------
// Attempt (attempts テーブル / コレクション 1 レコード)
// ------------------------------------------------------
//
// 秘密鍵は保持しない。公開アドレスと生成済みアーティファクトのみ。
type Attempt struct {
	ID                 string
	Network            Network
	PayerAddress       string
	Phase              Phase
	RequestFingerprint []byte

	Mint         *MintResult
	Distribution *DistributionResult
	Metadata     *MetadataAttachment
	ReserveOwner string

	FailedPhase   Phase
	FailureReason string
	FailureDetail string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAttempt starts a record in AwaitingFunds.
func NewAttempt(id string, network Network, payerAddress string, fingerprint []byte, now time.Time) Attempt {
	now = now.UTC()
	return Attempt{
		ID:                 strings.TrimSpace(id),
		Network:            network,
		PayerAddress:       strings.TrimSpace(payerAddress),
		Phase:              PhaseAwaitingFunds,
		RequestFingerprint: append([]byte(nil), fingerprint...),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// MarkFailed records a terminal failure.
func (a *Attempt) MarkFailed(f *FailureError, at time.Time) {
	a.Phase = PhaseFailed
	a.FailedPhase = f.Phase
	a.FailureReason = ReasonCode(f)
	a.FailureDetail = f.Error()
	a.UpdatedAt = at.UTC()
}

// Clone returns a deep copy; repositories hand out clones only.
func (a Attempt) Clone() Attempt {
	out := a
	out.RequestFingerprint = append([]byte(nil), a.RequestFingerprint...)
	if a.Mint != nil {
		m := *a.Mint
		out.Mint = &m
	}
	if a.Distribution != nil {
		d := *a.Distribution
		d.UserShare = cloneInt(a.Distribution.UserShare)
		d.ReserveShare = cloneInt(a.Distribution.ReserveShare)
		out.Distribution = &d
	}
	if a.Metadata != nil {
		md := *a.Metadata
		out.Metadata = &md
	}
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// NeedsRemediation reports attempts an operator has to finish by hand.
func (a Attempt) NeedsRemediation() bool {
	if a.Phase != PhaseFailed {
		return false
	}
	switch a.FailureReason {
	case "partial_distribution", "metadata_attach_failed":
		return true
	case "ledger_outcome_unknown":
		// 入金前（airdrop 未確認）は台帳に何も残っていない
		return a.FailedPhase != PhaseAwaitingFunds
	}
	return false
}

// ResumeState is what a suspended attempt needs to continue: its id and the paying
// credential. It only ever leaves the server sealed by a CredentialCodec.
type ResumeState struct {
	AttemptID  string
	Credential Credential
}

// ------------------------------------------------------
// Social links
// ------------------------------------------------------

// ParseSocialLinks decodes the opaque socials payload. A malformed payload is not an
// error: it defaults to "no social links" and only a warning is logged.
func ParseSocialLinks(raw []byte) (map[string]any, bool) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, true
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[issuance] WARN: socials is not a JSON object, ignoring: %v", err)
		return nil, false
	}
	return out, true
}
