// internal/application/issuance/usecase.go
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	issuancedom "tokenissuer/internal/domain/issuance"
	"tokenissuer/internal/infra/metrics"
)

// ============================================================
// IssuanceUsecase 本体
// ============================================================

// Usecase drives the funding-gated issuance saga. One Ledger per network is injected;
// nothing here keeps a process-wide connection.
type Usecase struct {
	ledgers  map[issuancedom.Network]issuancedom.Ledger
	attempts issuancedom.AttemptRepository
	codec    CredentialCodec

	// reserve 受取先: 固定アドレス or attempt ごとに生成して vault へ
	reserveOwner string
	reserveVault ReserveKeyVault

	// 任意。既存DIを壊さないため Setter で差し込む
	notifier RemediationNotifier

	now        func() time.Time
	newID      func() string
	staleAfter time.Duration
}

// NewUsecase wires the saga. ledgers must hold an entry for every network requests may name.
func NewUsecase(
	ledgers map[issuancedom.Network]issuancedom.Ledger,
	attempts issuancedom.AttemptRepository,
	codec CredentialCodec,
) *Usecase {
	ls := make(map[issuancedom.Network]issuancedom.Ledger, len(ledgers))
	for n, l := range ledgers {
		ls[n] = l
	}
	return &Usecase{
		ledgers:    ls,
		attempts:   attempts,
		codec:      codec,
		now:        time.Now,
		newID:      uuid.NewString,
		staleAfter: 15 * time.Minute,
	}
}

// SetReserveOwner sends every reserve share to a fixed owner address.
func (u *Usecase) SetReserveOwner(address string) error {
	address = strings.TrimSpace(address)
	if err := issuancedom.ValidateAddress(address); err != nil {
		return fmt.Errorf("reserve owner: %w", err)
	}
	u.reserveOwner = address
	return nil
}

// SetReserveVault makes the saga generate a reserve keypair per attempt and hand it to v.
func (u *Usecase) SetReserveVault(v ReserveKeyVault) { u.reserveVault = v }

func (u *Usecase) SetNotifier(n RemediationNotifier) { u.notifier = n }

// SetClock is for tests.
func (u *Usecase) SetClock(now func() time.Time) {
	if now != nil {
		u.now = now
	}
}

// SetStaleAfter controls when a mid-flight attempt shows up in ListRemediation.
func (u *Usecase) SetStaleAfter(d time.Duration) {
	if d > 0 {
		u.staleAfter = d
	}
}

// ResumeInput carries the token from an awaiting_funds outcome and the original request fields.
type ResumeInput struct {
	Token   string
	Request issuancedom.RequestInput
}

func (u *Usecase) ledgerFor(n issuancedom.Network) (issuancedom.Ledger, error) {
	l, ok := u.ledgers[n]
	if !ok || l == nil {
		return nil, fmt.Errorf("%w: %s", ErrNetworkNotConfigured, n)
	}
	return l, nil
}

func (u *Usecase) checkReady() error {
	switch {
	case u == nil:
		return errors.New("issuance usecase is nil")
	case u.attempts == nil:
		return errors.New("attempt repository is nil")
	case u.codec == nil:
		return errors.New("credential codec is nil")
	case u.reserveOwner == "" && u.reserveVault == nil:
		return errors.New("neither reserve owner nor reserve vault is configured")
	}
	return nil
}

// ============================================================
// Start
// ============================================================

// Start validates the request, generates a paying credential and either runs the saga
// to a terminal phase or suspends in AwaitingFunds.
func (u *Usecase) Start(ctx context.Context, in issuancedom.RequestInput) (*Outcome, error) {
	if err := u.checkReady(); err != nil {
		return nil, err
	}
	req, err := issuancedom.NewRequest(in)
	if err != nil {
		metrics.Outcomes.WithLabelValues("start", "invalid").Inc()
		return nil, err
	}
	ledger, err := u.ledgerFor(req.Network())
	if err != nil {
		return nil, err
	}

	out := &Outcome{Network: req.Network(), Request: req.Input(), RequiredBalance: issuancedom.FundingThreshold}
	if _, ok := issuancedom.ParseSocialLinks(req.RawSocials()); !ok {
		out.warn("socials is not a JSON object and was ignored")
	}

	cred, err := ledger.NewCredential()
	if err != nil {
		return nil, fmt.Errorf("new credential: %w", err)
	}

	a := issuancedom.NewAttempt(u.newID(), req.Network(), cred.Address, req.Fingerprint(), u.now())
	if err := u.attempts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	out.AttemptID = a.ID
	out.PayerAddress = cred.Address

	metrics.AttemptsStarted.WithLabelValues(string(req.Network())).Inc()
	log.Printf("[issuance_usecase] start attemptId=%s network=%s payer=%s symbol=%q supply=%s decimals=%d",
		a.ID, req.Network(), maskShort(cred.Address), req.Symbol(), req.TotalSupply(), req.Decimals())

	balance, err := u.fund(ctx, ledger, req.Network(), cred.Address)
	if err != nil {
		if req.Network().SelfFunded() {
			// faucet が失敗した時点では何も書き込んでいない
			u.fail(ctx, &a, out, &issuancedom.FailureError{
				Phase:  issuancedom.PhaseAwaitingFunds,
				Reason: ledgerReason(err),
				Cause:  err,
			})
			metrics.Outcomes.WithLabelValues("start", string(out.Status)).Inc()
			return out, nil
		}
		// 新規ウォレットの残高確認失敗は入金待ちとして扱う
		log.Printf("[issuance_usecase] WARN: balance check failed attemptId=%s err=%v", a.ID, err)
		out.warn("balance check failed: %v", err)
		balance = 0
	}

	if balance < issuancedom.FundingThreshold {
		if err := u.suspend(out, req, cred, a.ID, balance); err != nil {
			return nil, err
		}
		metrics.Outcomes.WithLabelValues("start", string(out.Status)).Inc()
		return out, nil
	}

	claimed, err := u.attempts.Claim(ctx, a.ID, issuancedom.PhaseAwaitingFunds, issuancedom.PhaseMinting, u.now())
	if err != nil {
		return nil, fmt.Errorf("claim attempt: %w", err)
	}
	u.run(ctx, ledger, req, cred, claimed, out)
	metrics.Outcomes.WithLabelValues("start", string(out.Status)).Inc()
	return out, nil
}

// ============================================================
// Resume
// ============================================================

// Resume re-checks funding for a suspended attempt. Below the threshold it returns
// insufficient_funds without touching the ledger; otherwise it claims the attempt
// (at most once) and runs the saga. A second resume gets *AlreadyProcessedError.
func (u *Usecase) Resume(ctx context.Context, in ResumeInput) (*Outcome, error) {
	if err := u.checkReady(); err != nil {
		return nil, err
	}
	req, err := issuancedom.NewRequest(in.Request)
	if err != nil {
		metrics.Outcomes.WithLabelValues("resume", "invalid").Inc()
		return nil, err
	}
	st, err := u.codec.Decode(strings.TrimSpace(in.Token), req.Fingerprint())
	if err != nil {
		metrics.Outcomes.WithLabelValues("resume", "invalid").Inc()
		return nil, err
	}
	ledger, err := u.ledgerFor(req.Network())
	if err != nil {
		return nil, err
	}

	a, err := u.loadForResume(ctx, req, st)
	if err != nil {
		return nil, err
	}
	if a.Phase != issuancedom.PhaseAwaitingFunds {
		metrics.Outcomes.WithLabelValues("resume", "already_processed").Inc()
		return nil, &AlreadyProcessedError{Attempt: a}
	}

	out := &Outcome{
		AttemptID:       a.ID,
		Network:         req.Network(),
		PayerAddress:    st.Credential.Address,
		Request:         req.Input(),
		RequiredBalance: issuancedom.FundingThreshold,
	}
	if _, ok := issuancedom.ParseSocialLinks(req.RawSocials()); !ok {
		out.warn("socials is not a JSON object and was ignored")
	}

	// resume は残高を読むだけ。faucet 要求は Start の 1 回に限る
	balance, err := ledger.GetBalance(ctx, st.Credential.Address)
	if err != nil {
		// attempt は AwaitingFunds のまま。同じ token で再試行できる
		return nil, fmt.Errorf("funding check: %w", err)
	}
	if balance < issuancedom.FundingThreshold {
		log.Printf("[issuance_usecase] resume still insufficient attemptId=%s balance=%d required=%d",
			a.ID, balance, issuancedom.FundingThreshold)
		out.Status = StatusInsufficientFunds
		out.ResumeToken = strings.TrimSpace(in.Token)
		out.Balance = balance
		metrics.Outcomes.WithLabelValues("resume", string(out.Status)).Inc()
		return out, nil
	}

	claimed, err := u.attempts.Claim(ctx, a.ID, issuancedom.PhaseAwaitingFunds, issuancedom.PhaseMinting, u.now())
	if err != nil {
		if errors.Is(err, issuancedom.ErrAttemptAlreadyProcessed) {
			metrics.Outcomes.WithLabelValues("resume", "already_processed").Inc()
			return nil, &AlreadyProcessedError{Attempt: claimed}
		}
		return nil, fmt.Errorf("claim attempt: %w", err)
	}

	log.Printf("[issuance_usecase] resume funded attemptId=%s balance=%d", a.ID, balance)
	u.run(ctx, ledger, req, st.Credential, claimed, out)
	metrics.Outcomes.WithLabelValues("resume", string(out.Status)).Inc()
	return out, nil
}

// loadForResume fetches the attempt named by an authenticated token. The record is the
// terminal marker: a token whose attempt is unknown is rejected and never re-created,
// otherwise a store that lost its records would let a finished token mint again.
func (u *Usecase) loadForResume(ctx context.Context, req issuancedom.Request, st issuancedom.ResumeState) (issuancedom.Attempt, error) {
	a, err := u.attempts.GetByID(ctx, st.AttemptID)
	if errors.Is(err, issuancedom.ErrAttemptNotFound) {
		log.Printf("[issuance_usecase] WARN: resume for unknown attempt rejected attemptId=%s payer=%s",
			st.AttemptID, maskShort(st.Credential.Address))
		return issuancedom.Attempt{}, fmt.Errorf("%w: attempt %s is unknown", issuancedom.ErrInvalidResumeToken, st.AttemptID)
	}
	if err != nil {
		return issuancedom.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	if a.PayerAddress != st.Credential.Address || a.Network != req.Network() {
		return issuancedom.Attempt{}, issuancedom.ErrInvalidResumeToken
	}
	return a, nil
}

// ============================================================
// Queries
// ============================================================

func (u *Usecase) GetAttempt(ctx context.Context, id string) (issuancedom.Attempt, error) {
	if u == nil || u.attempts == nil {
		return issuancedom.Attempt{}, errors.New("attempt repository is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return issuancedom.Attempt{}, issuancedom.ErrAttemptNotFound
	}
	return u.attempts.GetByID(ctx, id)
}

// ListRemediation returns failed attempts an operator must finish by hand and
// attempts stuck mid-flight for longer than staleAfter.
func (u *Usecase) ListRemediation(ctx context.Context, limit int) ([]issuancedom.Attempt, error) {
	if u == nil || u.attempts == nil {
		return nil, errors.New("attempt repository is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	list, err := u.attempts.ListByPhase(ctx, []issuancedom.Phase{
		issuancedom.PhaseFailed,
		issuancedom.PhaseMinting,
		issuancedom.PhaseDistributing,
		issuancedom.PhaseAttachingMetadata,
	}, limit*2)
	if err != nil {
		return nil, err
	}

	cutoff := u.now().Add(-u.staleAfter)
	out := make([]issuancedom.Attempt, 0, len(list))
	for _, a := range list {
		switch {
		case a.Phase == issuancedom.PhaseFailed && a.NeedsRemediation():
		case a.Phase != issuancedom.PhaseFailed && a.UpdatedAt.Before(cutoff):
		default:
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ============================================================
// helpers
// ============================================================

// fund returns the payer balance, requesting faucet funds first on self-funded networks.
// Only Start calls it.
func (u *Usecase) fund(ctx context.Context, ledger issuancedom.Ledger, n issuancedom.Network, address string) (uint64, error) {
	balance, err := ledger.GetBalance(ctx, address)
	if err != nil {
		return 0, err
	}
	if balance >= issuancedom.FundingThreshold || !n.SelfFunded() {
		return balance, nil
	}
	if err := ledger.RequestTestFunds(ctx, address, issuancedom.FundingThreshold); err != nil {
		return 0, err
	}
	return ledger.GetBalance(ctx, address)
}

func (u *Usecase) suspend(out *Outcome, req issuancedom.Request, cred issuancedom.Credential, attemptID string, balance uint64) error {
	token, err := u.codec.Encode(issuancedom.ResumeState{AttemptID: attemptID, Credential: cred}, req.Fingerprint())
	if err != nil {
		return fmt.Errorf("encode resume token: %w", err)
	}
	out.Status = StatusAwaitingFunds
	out.ResumeToken = token
	out.Balance = balance
	log.Printf("[issuance_usecase] suspended attemptId=%s payer=%s balance=%d required=%d",
		attemptID, maskShort(cred.Address), balance, issuancedom.FundingThreshold)
	return nil
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
