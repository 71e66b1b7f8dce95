// internal/infra/retry/ledger.go
package retry

import (
	"context"
	"errors"
	"log"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tokenissuer/internal/domain/issuance"
	"tokenissuer/internal/infra/metrics"
)

// Config bounds the retry loop of one ledger call.
type Config struct {
	MaxRetries   uint64        // retries after the first try
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap on a single delay
}

// DefaultConfig is used for zero fields.
var DefaultConfig = Config{
	MaxRetries:   4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     8 * time.Second,
}

// Ledger decorates an issuance.Ledger with bounded exponential backoff.
// Only ErrLedgerUnavailable is retried. ErrLedgerRejected and broadcast
// transactions with an unknown outcome return on the first failure.
type Ledger struct {
	next issuance.Ledger
	cfg  Config
}

var _ issuance.Ledger = (*Ledger)(nil)

func NewLedger(next issuance.Ledger, cfg Config) *Ledger {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	return &Ledger{next: next, cfg: cfg}
}

// Retryable reports whether err is a transient ledger failure that is safe to repeat.
func Retryable(err error) bool {
	return errors.Is(err, issuance.ErrLedgerUnavailable) && !errors.Is(err, issuance.ErrLedgerOutcomeUnknown)
}

func (l *Ledger) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.InitialDelay
	b.MaxInterval = l.cfg.MaxDelay
	b.MaxElapsedTime = 0 // bounded by MaxRetries
	return backoff.WithContext(backoff.WithMaxRetries(b, l.cfg.MaxRetries), ctx)
}

func (l *Ledger) do(ctx context.Context, op string, fn func() error) error {
	err := backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, l.policy(ctx), func(err error, wait time.Duration) {
		metrics.LedgerRetries.WithLabelValues(op).Inc()
		log.Printf("[ledger_retry] WARN: op=%s transient failure, retry in %s: %v", op, wait, err)
	})
	metrics.LedgerCalls.WithLabelValues(op, resultLabel(err)).Inc()
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, issuance.ErrLedgerOutcomeUnknown):
		return "unknown"
	case errors.Is(err, issuance.ErrLedgerRejected):
		return "rejected"
	case errors.Is(err, issuance.ErrLedgerUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (l *Ledger) NewCredential() (issuance.Credential, error) {
	return l.next.NewCredential()
}

func (l *Ledger) GetBalance(ctx context.Context, address string) (uint64, error) {
	var bal uint64
	err := l.do(ctx, "getBalance", func() (err error) {
		bal, err = l.next.GetBalance(ctx, address)
		return err
	})
	return bal, err
}

func (l *Ledger) RequestTestFunds(ctx context.Context, address string, lamports uint64) error {
	return l.do(ctx, "requestTestFunds", func() error {
		return l.next.RequestTestFunds(ctx, address, lamports)
	})
}

func (l *Ledger) CreateMint(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error) {
	var mint string
	err := l.do(ctx, "createMint", func() (err error) {
		mint, err = l.next.CreateMint(ctx, authority, decimals)
		return err
	})
	return mint, err
}

func (l *Ledger) ResolveOrCreateTokenAccount(ctx context.Context, payer issuance.Credential, mint, owner string) (string, error) {
	var account string
	err := l.do(ctx, "resolveOrCreateTokenAccount", func() (err error) {
		account, err = l.next.ResolveOrCreateTokenAccount(ctx, payer, mint, owner)
		return err
	})
	return account, err
}

func (l *Ledger) MintTo(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
	return l.do(ctx, "mintTo", func() error {
		return l.next.MintTo(ctx, payer, mint, tokenAccount, authority, amount)
	})
}

func (l *Ledger) DeriveMetadataAddress(mint string) (string, error) {
	return l.next.DeriveMetadataAddress(mint)
}

func (l *Ledger) SubmitMetadataAttachment(ctx context.Context, payer issuance.Credential, mint, metadataAddress string, fields issuance.MetadataFields) (string, error) {
	var txID string
	err := l.do(ctx, "submitMetadataAttachment", func() (err error) {
		txID, err = l.next.SubmitMetadataAttachment(ctx, payer, mint, metadataAddress, fields)
		return err
	})
	return txID, err
}
