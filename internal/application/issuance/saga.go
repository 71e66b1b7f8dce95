// internal/application/issuance/saga.go
package issuance

import (
	"context"
	"errors"
	"log"
	"time"

	issuancedom "tokenissuer/internal/domain/issuance"
	"tokenissuer/internal/infra/metrics"
)

// ============================================================
// Saga: Minting → Distributing → AttachingMetadata → Completed
// ============================================================
//
// 台帳操作は取り消せないので、失敗時はロールバックせず
// 「どこまで進んだか」を attempt と Outcome に正確に残す。

// run executes the saga for an attempt already claimed into Minting.
func (u *Usecase) run(
	ctx context.Context,
	ledger issuancedom.Ledger,
	req issuancedom.Request,
	payer issuancedom.Credential,
	a issuancedom.Attempt,
	out *Outcome,
) {
	// 一度ミントを始めたら呼び出し元の切断では止めない（各 ledger 呼び出しは個別にタイムアウトする）
	ctx = context.WithoutCancel(ctx)

	if f := u.mint(ctx, ledger, req, payer, &a, out); f != nil {
		u.fail(ctx, &a, out, f)
		return
	}
	if f := u.distribute(ctx, ledger, req, payer, &a, out); f != nil {
		u.fail(ctx, &a, out, f)
		return
	}
	if f := u.attachMetadata(ctx, ledger, req, payer, &a, out); f != nil {
		u.fail(ctx, &a, out, f)
		return
	}

	out.Status = StatusCompleted
	out.absorb(a)
	log.Printf("[issuance_usecase] completed attemptId=%s mint=%s metadata=%s tx=%s",
		a.ID, maskShort(a.Mint.MintAddress), maskShort(a.Metadata.Address), maskShort(a.Metadata.TxID))
}

func (u *Usecase) mint(ctx context.Context, ledger issuancedom.Ledger, req issuancedom.Request, payer issuancedom.Credential, a *issuancedom.Attempt, out *Outcome) *issuancedom.FailureError {
	defer observePhase(issuancedom.PhaseMinting, time.Now())

	mintAddr, err := ledger.CreateMint(ctx, payer, req.Decimals())
	if err != nil {
		return &issuancedom.FailureError{Phase: issuancedom.PhaseMinting, Reason: ledgerReason(err), Cause: err}
	}

	a.Mint = &issuancedom.MintResult{MintAddress: mintAddr, Decimals: req.Decimals()}
	u.advance(ctx, a, issuancedom.PhaseDistributing, out)
	return nil
}

func (u *Usecase) distribute(ctx context.Context, ledger issuancedom.Ledger, req issuancedom.Request, payer issuancedom.Credential, a *issuancedom.Attempt, out *Outcome) *issuancedom.FailureError {
	defer observePhase(issuancedom.PhaseDistributing, time.Now())

	mintAddr := a.Mint.MintAddress
	userShare, reserveShare := issuancedom.SplitSupply(req.TotalSupply())

	failed := func(reason, cause error) *issuancedom.FailureError {
		return &issuancedom.FailureError{Phase: issuancedom.PhaseDistributing, Reason: reason, Cause: cause}
	}

	userAccount, err := ledger.ResolveOrCreateTokenAccount(ctx, payer, mintAddr, req.Recipient())
	if err != nil {
		return failed(ledgerReason(err), err)
	}

	reserveOwner, err := u.reserveRecipient(ctx, ledger, a.ID)
	if err != nil {
		return failed(issuancedom.ErrReserveCustody, err)
	}
	a.ReserveOwner = reserveOwner

	reserveAccount, err := ledger.ResolveOrCreateTokenAccount(ctx, payer, mintAddr, reserveOwner)
	if err != nil {
		return failed(ledgerReason(err), err)
	}

	// user share が先、reserve share が後（順序固定）
	if err := ledger.MintTo(ctx, payer, mintAddr, userAccount, payer.Address, userShare); err != nil {
		return failed(ledgerReason(err), err)
	}

	a.Distribution = &issuancedom.DistributionResult{
		UserTokenAccount: userAccount,
		UserShare:        userShare,
		ReserveShare:     reserveShare,
	}

	if err := ledger.MintTo(ctx, payer, mintAddr, reserveAccount, payer.Address, reserveShare); err != nil {
		log.Printf("[issuance_usecase] ERROR: partial distribution attemptId=%s mint=%s userAccount=%s reserveOwner=%s err=%v",
			a.ID, maskShort(mintAddr), maskShort(userAccount), maskShort(reserveOwner), err)
		return failed(issuancedom.ErrPartialDistribution, err)
	}

	a.Distribution.ReserveTokenAccount = reserveAccount
	u.advance(ctx, a, issuancedom.PhaseAttachingMetadata, out)
	return nil
}

func (u *Usecase) attachMetadata(ctx context.Context, ledger issuancedom.Ledger, req issuancedom.Request, payer issuancedom.Credential, a *issuancedom.Attempt, out *Outcome) *issuancedom.FailureError {
	defer observePhase(issuancedom.PhaseAttachingMetadata, time.Now())

	mdAddr, err := ledger.DeriveMetadataAddress(a.Mint.MintAddress)
	if err != nil {
		return &issuancedom.FailureError{Phase: issuancedom.PhaseAttachingMetadata, Reason: issuancedom.ErrMetadataAttachFailed, Cause: err}
	}
	a.Metadata = &issuancedom.MetadataAttachment{Address: mdAddr}

	txID, err := ledger.SubmitMetadataAttachment(ctx, payer, a.Mint.MintAddress, mdAddr, issuancedom.MetadataFieldsFor(req))
	if err != nil {
		return &issuancedom.FailureError{Phase: issuancedom.PhaseAttachingMetadata, Reason: issuancedom.ErrMetadataAttachFailed, Cause: err}
	}

	a.Metadata.TxID = txID
	u.advance(ctx, a, issuancedom.PhaseCompleted, out)
	return nil
}

// reserveRecipient returns the configured reserve owner, or generates a fresh keypair
// and hands it to the vault before any token is minted to it.
func (u *Usecase) reserveRecipient(ctx context.Context, ledger issuancedom.Ledger, attemptID string) (string, error) {
	if u.reserveOwner != "" {
		return u.reserveOwner, nil
	}
	if u.reserveVault == nil {
		return "", errors.New("reserve vault is not configured")
	}
	cred, err := ledger.NewCredential()
	if err != nil {
		return "", err
	}
	if _, err := u.reserveVault.Store(ctx, attemptID, cred); err != nil {
		return "", err
	}
	return cred.Address, nil
}

// advance persists the artifacts produced so far and moves a to next. A store failure
// does not undo ledger work: it is logged and reported as a warning.
func (u *Usecase) advance(ctx context.Context, a *issuancedom.Attempt, next issuancedom.Phase, out *Outcome) {
	a.Phase = next
	a.UpdatedAt = u.now().UTC()
	if err := u.attempts.Save(ctx, *a); err != nil {
		log.Printf("[issuance_usecase] WARN: save attempt failed attemptId=%s phase=%s err=%v", a.ID, next, err)
		out.warn("attempt record not updated to %s: %v", next, err)
	}
}

// fail marks a Failed, reports every artifact produced before the failure and
// notifies an operator when manual completion is needed.
func (u *Usecase) fail(ctx context.Context, a *issuancedom.Attempt, out *Outcome, f *issuancedom.FailureError) {
	a.MarkFailed(f, u.now())
	if err := u.attempts.Save(ctx, *a); err != nil {
		log.Printf("[issuance_usecase] WARN: save failed attempt failed attemptId=%s err=%v", a.ID, err)
		out.warn("attempt record not updated to failed: %v", err)
	}

	out.Status = StatusFailed
	out.Failure = f
	out.absorb(*a)

	metrics.Failures.WithLabelValues(string(f.Phase), a.FailureReason).Inc()
	log.Printf("[issuance_usecase] failed attemptId=%s phase=%s reason=%s err=%v", a.ID, f.Phase, a.FailureReason, f)

	if !a.NeedsRemediation() || u.notifier == nil {
		return
	}
	if err := u.notifier.NotifyRemediation(ctx, *a); err != nil {
		metrics.RemediationNotifications.WithLabelValues("error").Inc()
		log.Printf("[issuance_usecase] WARN: remediation notify failed attemptId=%s err=%v", a.ID, err)
		out.warn("operator notification failed: %v", err)
		return
	}
	metrics.RemediationNotifications.WithLabelValues("sent").Inc()
}

// ledgerReason picks the taxonomy sentinel for a raw ledger failure.
func ledgerReason(err error) error {
	switch {
	case errors.Is(err, issuancedom.ErrLedgerOutcomeUnknown):
		return issuancedom.ErrLedgerOutcomeUnknown
	case errors.Is(err, issuancedom.ErrLedgerRejected):
		return issuancedom.ErrLedgerRejected
	default:
		return issuancedom.ErrLedgerUnavailable
	}
}

func observePhase(p issuancedom.Phase, start time.Time) {
	metrics.PhaseDuration.WithLabelValues(string(p)).Observe(time.Since(start).Seconds())
}
