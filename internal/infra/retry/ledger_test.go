package retry

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenissuer/internal/domain/issuance"
	"tokenissuer/internal/domain/issuance/issuancetest"
)

var fastConfig = Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestLedger_RetriesUnavailableUntilSuccess(t *testing.T) {
	fake := issuancetest.NewFakeLedger()
	tries := 0
	fake.GetBalanceFunc = func(ctx context.Context, address string) (uint64, error) {
		tries++
		if tries < 3 {
			return 0, issuance.Unavailable("getBalance", errors.New("connection reset"))
		}
		return 42, nil
	}

	bal, err := NewLedger(fake, fastConfig).GetBalance(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), bal)
	assert.Equal(t, 3, tries)
}

func TestLedger_GivesUpAfterMaxRetries(t *testing.T) {
	fake := issuancetest.NewFakeLedger()
	tries := 0
	fake.CreateMintFunc = func(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error) {
		tries++
		return "", issuance.Unavailable("createMint", errors.New("node is behind"))
	}

	_, err := NewLedger(fake, fastConfig).CreateMint(context.Background(), issuance.Credential{}, 9)
	assert.ErrorIs(t, err, issuance.ErrLedgerUnavailable)
	assert.Equal(t, int(fastConfig.MaxRetries)+1, tries)
}

func TestLedger_NeverRetriesRejected(t *testing.T) {
	fake := issuancetest.NewFakeLedger()
	tries := 0
	fake.MintToFunc = func(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
		tries++
		return issuance.Rejected("mintTo", errors.New("custom program error: 0x5"))
	}

	err := NewLedger(fake, fastConfig).MintTo(context.Background(), issuance.Credential{}, "m", "t", "", big.NewInt(1))
	assert.ErrorIs(t, err, issuance.ErrLedgerRejected)
	assert.Equal(t, 1, tries)
}

func TestLedger_NeverRetriesOutcomeUnknown(t *testing.T) {
	fake := issuancetest.NewFakeLedger()
	tries := 0
	fake.MintToFunc = func(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
		tries++
		return issuance.OutcomeUnknown("mintTo", context.DeadlineExceeded)
	}

	err := NewLedger(fake, fastConfig).MintTo(context.Background(), issuance.Credential{}, "m", "t", "", big.NewInt(1))
	assert.ErrorIs(t, err, issuance.ErrLedgerOutcomeUnknown)
	assert.Equal(t, 1, tries)
}

func TestLedger_StopsOnContextCancel(t *testing.T) {
	fake := issuancetest.NewFakeLedger()
	ctx, cancel := context.WithCancel(context.Background())
	tries := 0
	fake.SubmitMetadataAttachmentFunc = func(ctx context.Context, payer issuance.Credential, mint, md string, f issuance.MetadataFields) (string, error) {
		tries++
		cancel()
		return "", issuance.Unavailable("submitMetadataAttachment", errors.New("eof"))
	}

	slow := Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second}
	_, err := NewLedger(fake, slow).SubmitMetadataAttachment(ctx, issuance.Credential{}, "m", "md", issuance.MetadataFields{})
	assert.Error(t, err)
	assert.Equal(t, 1, tries)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(issuance.Unavailable("x", errors.New("eof"))))
	assert.False(t, Retryable(issuance.Rejected("x", errors.New("bad"))))
	assert.False(t, Retryable(issuance.OutcomeUnknown("x", errors.New("timeout"))))
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(nil))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "unknown", resultLabel(issuance.OutcomeUnknown("x", errors.New("t"))))
	assert.Equal(t, "rejected", resultLabel(issuance.Rejected("x", errors.New("t"))))
	assert.Equal(t, "unavailable", resultLabel(issuance.Unavailable("x", errors.New("t"))))
}
