package mail

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenissuer/internal/domain/issuance"
)

type captureClient struct {
	from, to, subject, body string
	calls                   int
}

func (c *captureClient) Send(ctx context.Context, from, to, subject, body string) error {
	c.calls++
	c.from, c.to, c.subject, c.body = from, to, subject, body
	return nil
}

func partialAttempt() issuance.Attempt {
	a := issuance.NewAttempt("att-1", issuance.NetworkMainnet, "PayerAddr", nil, time.Now())
	a.Mint = &issuance.MintResult{MintAddress: "MintAddr", Decimals: 6}
	a.Distribution = &issuance.DistributionResult{
		UserTokenAccount: "UserAta",
		UserShare:        big.NewInt(700),
		ReserveShare:     big.NewInt(300),
	}
	a.ReserveOwner = "ReserveOwner"
	a.MarkFailed(&issuance.FailureError{Phase: issuance.PhaseDistributing, Reason: issuance.ErrPartialDistribution}, time.Now())
	return a
}

func TestRemediationMailer(t *testing.T) {
	c := &captureClient{}
	m := NewRemediationMailer(c, " ops@example.com ", "oncall@example.com")

	require.NoError(t, m.NotifyRemediation(context.Background(), partialAttempt()))
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "ops@example.com", c.from)
	assert.Equal(t, "oncall@example.com", c.to)
	assert.Contains(t, c.subject, "att-1")
	assert.Contains(t, c.subject, "partial_distribution")

	assert.Contains(t, c.body, "MintAddr")
	assert.Contains(t, c.body, "UserAta")
	assert.Contains(t, c.body, "Reserve share  : 300")
	assert.Contains(t, c.body, "ReserveOwner")
	assert.NotContains(t, c.body, "Reserve account")
}

func TestSendGridClient_RejectsMissingFields(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewSendGridClient("").Send(ctx, "a@example.com", "b@example.com", "s", "b"))
	assert.Error(t, NewSendGridClient("key").Send(ctx, "", "b@example.com", "s", "b"))
	assert.Error(t, NewSendGridClient("key").Send(ctx, "a@example.com", "", "s", "b"))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.NotifyRemediation(context.Background(), partialAttempt()))
}
