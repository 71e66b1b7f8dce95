// internal/application/issuance/presenter/presenter.go
package presenter

import (
	"errors"
	"log"
	"net/http"
	"time"

	issuanceapp "tokenissuer/internal/application/issuance"
	issuancedom "tokenissuer/internal/domain/issuance"
)

// RequestView echoes the original request fields so the caller can resubmit them with the token.
// Field names match the issuance form.
type RequestView struct {
	Network     string `json:"network"`
	Name        string `json:"tokenName"`
	Symbol      string `json:"tokenSymbol"`
	MetadataURI string `json:"metadataUri"`
	TotalSupply string `json:"totalSupply"`
	Decimals    string `json:"decimals"`
	Socials     string `json:"socials,omitempty"`
	Recipient   string `json:"userWallet"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

type FailureView struct {
	Phase  string `json:"phase"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// OutcomeView is the JSON body for Start / Resume.
type OutcomeView struct {
	Status    string `json:"status"`
	AttemptID string `json:"attemptId,omitempty"`
	Network   string `json:"network,omitempty"`

	// awaiting_funds / insufficient_funds
	PayerAddress    string       `json:"payerAddress,omitempty"`
	ResumeToken     string       `json:"resumeToken,omitempty"`
	Balance         *uint64      `json:"balance,omitempty"`
	RequiredBalance uint64       `json:"requiredBalance,omitempty"`
	Request         *RequestView `json:"request,omitempty"`

	// artifacts
	MintAddress         string `json:"mintAddress,omitempty"`
	Decimals            *uint8 `json:"decimals,omitempty"`
	UserTokenAccount    string `json:"userTokenAccount,omitempty"`
	ReserveTokenAccount string `json:"reserveTokenAccount,omitempty"`
	UserShare           string `json:"userShare,omitempty"`
	ReserveShare        string `json:"reserveShare,omitempty"`
	ReserveOwner        string `json:"reserveOwner,omitempty"`
	MetadataAddress     string `json:"metadataAddress,omitempty"`
	TransactionID       string `json:"transactionId,omitempty"`
	LogoURL             string `json:"logoUrl,omitempty"`

	Failure  *FailureView `json:"failure,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
}

// AttemptView is the stored attempt record (no key material exists in it).
type AttemptView struct {
	ID                  string       `json:"id"`
	Network             string       `json:"network"`
	Phase               string       `json:"phase"`
	PayerAddress        string       `json:"payerAddress"`
	MintAddress         string       `json:"mintAddress,omitempty"`
	UserTokenAccount    string       `json:"userTokenAccount,omitempty"`
	ReserveTokenAccount string       `json:"reserveTokenAccount,omitempty"`
	UserShare           string       `json:"userShare,omitempty"`
	ReserveShare        string       `json:"reserveShare,omitempty"`
	ReserveOwner        string       `json:"reserveOwner,omitempty"`
	MetadataAddress     string       `json:"metadataAddress,omitempty"`
	TransactionID       string       `json:"transactionId,omitempty"`
	Failure             *FailureView `json:"failure,omitempty"`
	NeedsRemediation    bool         `json:"needsRemediation"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

type ErrorView struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Field   string       `json:"field,omitempty"`
	Attempt *AttemptView `json:"attempt,omitempty"`
}

// PresentOutcome maps an outcome to its HTTP status and body.
// 200 completed, 202 awaiting/insufficient funds, 502 failed.
func PresentOutcome(o *issuanceapp.Outcome) (int, OutcomeView) {
	if o == nil {
		return http.StatusInternalServerError, OutcomeView{Status: "internal"}
	}

	v := OutcomeView{
		Status:       string(o.Status),
		AttemptID:    o.AttemptID,
		Network:      string(o.Network),
		PayerAddress: o.PayerAddress,
		ReserveOwner: o.ReserveOwner,
		LogoURL:      o.Request.LogoURL,
		Warnings:     o.Warnings,
	}

	if o.Mint != nil {
		d := o.Mint.Decimals
		v.MintAddress = o.Mint.MintAddress
		v.Decimals = &d
	}
	if d := o.Distribution; d != nil {
		v.UserTokenAccount = d.UserTokenAccount
		v.ReserveTokenAccount = d.ReserveTokenAccount
		if d.UserShare != nil {
			v.UserShare = d.UserShare.String()
		}
		if d.ReserveShare != nil {
			v.ReserveShare = d.ReserveShare.String()
		}
	}
	if o.Metadata != nil {
		v.MetadataAddress = o.Metadata.Address
		v.TransactionID = o.Metadata.TxID
	}

	switch o.Status {
	case issuanceapp.StatusCompleted:
		return http.StatusOK, v
	case issuanceapp.StatusAwaitingFunds, issuanceapp.StatusInsufficientFunds:
		bal := o.Balance
		v.Balance = &bal
		v.ResumeToken = o.ResumeToken
		v.RequiredBalance = o.RequiredBalance
		rv := requestView(o.Request)
		v.Request = &rv
		return http.StatusAccepted, v
	case issuanceapp.StatusFailed:
		if o.Failure != nil {
			v.Failure = &FailureView{
				Phase:  string(o.Failure.Phase),
				Reason: issuancedom.ReasonCode(o.Failure),
				Detail: o.Failure.Error(),
			}
		}
		return http.StatusBadGateway, v
	default:
		return http.StatusInternalServerError, v
	}
}

// PresentError maps usecase errors to an HTTP status and body.
func PresentError(err error) (int, ErrorView) {
	var verr *issuancedom.ValidationError
	var already *issuanceapp.AlreadyProcessedError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorView{Error: verr.Error(), Code: "validation", Field: verr.Field}
	case errors.Is(err, issuancedom.ErrInvalidResumeToken):
		return http.StatusBadRequest, ErrorView{Error: "resume token is invalid or does not match the request", Code: "invalid_resume_token"}
	case errors.As(err, &already):
		av := PresentAttempt(already.Attempt)
		return http.StatusConflict, ErrorView{Error: "attempt was already resumed", Code: "already_processed", Attempt: &av}
	case errors.Is(err, issuancedom.ErrAttemptNotFound):
		return http.StatusNotFound, ErrorView{Error: "attempt not found", Code: "not_found"}
	case errors.Is(err, issuanceapp.ErrNetworkNotConfigured):
		return http.StatusBadRequest, ErrorView{Error: err.Error(), Code: "network_not_configured"}
	case errors.Is(err, issuancedom.ErrLedgerUnavailable):
		log.Printf("[issuance_presenter] ledger unavailable err=%v", err)
		return http.StatusServiceUnavailable, ErrorView{Error: "ledger unavailable, retry later", Code: "ledger_unavailable"}
	case errors.Is(err, issuancedom.ErrLedgerRejected):
		// RPC の生エラーはログにだけ残す
		log.Printf("[issuance_presenter] ledger rejected err=%v", err)
		return http.StatusBadGateway, ErrorView{Error: "ledger rejected the request", Code: "ledger_rejected"}
	default:
		log.Printf("[issuance_presenter] internal err=%v", err)
		return http.StatusInternalServerError, ErrorView{Error: "internal error", Code: "internal"}
	}
}

func PresentAttempt(a issuancedom.Attempt) AttemptView {
	v := AttemptView{
		ID:               a.ID,
		Network:          string(a.Network),
		Phase:            string(a.Phase),
		PayerAddress:     a.PayerAddress,
		ReserveOwner:     a.ReserveOwner,
		NeedsRemediation: a.NeedsRemediation(),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if a.Mint != nil {
		v.MintAddress = a.Mint.MintAddress
	}
	if d := a.Distribution; d != nil {
		v.UserTokenAccount = d.UserTokenAccount
		v.ReserveTokenAccount = d.ReserveTokenAccount
		if d.UserShare != nil {
			v.UserShare = d.UserShare.String()
		}
		if d.ReserveShare != nil {
			v.ReserveShare = d.ReserveShare.String()
		}
	}
	if a.Metadata != nil {
		v.MetadataAddress = a.Metadata.Address
		v.TransactionID = a.Metadata.TxID
	}
	if a.Phase == issuancedom.PhaseFailed {
		v.Failure = &FailureView{
			Phase:  string(a.FailedPhase),
			Reason: a.FailureReason,
			Detail: a.FailureDetail,
		}
	}
	return v
}

func PresentAttempts(list []issuancedom.Attempt) []AttemptView {
	out := make([]AttemptView, 0, len(list))
	for _, a := range list {
		out = append(out, PresentAttempt(a))
	}
	return out
}

func requestView(in issuancedom.RequestInput) RequestView {
	return RequestView{
		Network:     in.Network,
		Name:        in.Name,
		Symbol:      in.Symbol,
		MetadataURI: in.MetadataURI,
		TotalSupply: in.TotalSupply,
		Decimals:    in.Decimals,
		Socials:     in.Socials,
		Recipient:   in.Recipient,
		LogoURL:     in.LogoURL,
	}
}
