package db

import (
	"database/sql"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenissuer/internal/domain/issuance"
)

// argRow feeds attemptArgs output back through scanAttempt like a database row would.
type argRow struct {
	id   string
	args []any
}

func (r argRow) Scan(dest ...any) error {
	if len(dest) != len(r.args)+1 {
		return errors.New("column count mismatch")
	}
	*dest[0].(*string) = r.id
	for i, v := range r.args {
		switch d := dest[i+1].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		case *sql.NullString:
			*d = v.(sql.NullString)
		case *sql.NullInt16:
			*d = v.(sql.NullInt16)
		default:
			return errors.New("unexpected destination")
		}
	}
	return nil
}

func TestAttemptArgsRoundTrip(t *testing.T) {
	now := time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)
	a := issuance.NewAttempt("a1", issuance.NetworkDevnet, "payer", []byte{1, 2, 3}, now)
	a.Phase = issuance.PhaseCompleted
	a.Mint = &issuance.MintResult{MintAddress: "mint", Decimals: 9}
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	a.Distribution = &issuance.DistributionResult{
		UserTokenAccount:    "u",
		ReserveTokenAccount: "r",
		UserShare:           huge,
		ReserveShare:        big.NewInt(1),
	}
	a.Metadata = &issuance.MetadataAttachment{Address: "md", TxID: "sig"}
	a.ReserveOwner = "owner"

	got, err := scanAttempt(argRow{id: "a1", args: attemptArgs(a)})
	require.NoError(t, err)
	assert.Equal(t, a.Phase, got.Phase)
	assert.Equal(t, a.Mint, got.Mint)
	assert.Equal(t, huge.String(), got.Distribution.UserShare.String())
	assert.Equal(t, "r", got.Distribution.ReserveTokenAccount)
	assert.Equal(t, a.Metadata, got.Metadata)
	assert.Equal(t, "owner", got.ReserveOwner)
	assert.Empty(t, got.FailureReason)
	assert.Equal(t, now, got.CreatedAt)
}

func TestAttemptArgs_EmptyArtifactsAreNull(t *testing.T) {
	a := issuance.NewAttempt("a2", issuance.NetworkMainnet, "payer", nil, time.Now())
	args := attemptArgs(a)
	require.Len(t, args, 18)

	got, err := scanAttempt(argRow{id: "a2", args: args})
	require.NoError(t, err)
	assert.Nil(t, got.Mint)
	assert.Nil(t, got.Distribution)
	assert.Nil(t, got.Metadata)
	assert.Equal(t, issuance.PhaseAwaitingFunds, got.Phase)
}
