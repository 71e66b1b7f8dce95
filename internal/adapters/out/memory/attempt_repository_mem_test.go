package memory

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenissuer/internal/domain/issuance"
)

func TestAttemptRepositoryMem_CreateGet(t *testing.T) {
	ctx := context.Background()
	r := NewAttemptRepositoryMem()
	now := time.Now()

	a := issuance.NewAttempt("a1", issuance.NetworkDevnet, "payer", []byte{1, 2}, now)
	require.NoError(t, r.Create(ctx, a))
	assert.ErrorIs(t, r.Create(ctx, a), issuance.ErrAttemptExists)

	got, err := r.GetByID(ctx, " a1 ")
	require.NoError(t, err)
	assert.Equal(t, issuance.PhaseAwaitingFunds, got.Phase)

	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, issuance.ErrAttemptNotFound)
}

func TestAttemptRepositoryMem_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	r := NewAttemptRepositoryMem()
	require.NoError(t, r.Create(ctx, issuance.NewAttempt("a1", issuance.NetworkMainnet, "payer", nil, time.Now())))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Claim(ctx, "a1", issuance.PhaseAwaitingFunds, issuance.PhaseMinting, time.Now())
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, issuance.ErrAttemptAlreadyProcessed)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	stored, err := r.Claim(ctx, "a1", issuance.PhaseAwaitingFunds, issuance.PhaseMinting, time.Now())
	assert.ErrorIs(t, err, issuance.ErrAttemptAlreadyProcessed)
	assert.Equal(t, issuance.PhaseMinting, stored.Phase)

	_, err = r.Claim(ctx, "nope", issuance.PhaseAwaitingFunds, issuance.PhaseMinting, time.Now())
	assert.ErrorIs(t, err, issuance.ErrAttemptNotFound)
}

func TestAttemptRepositoryMem_SaveIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	r := NewAttemptRepositoryMem()
	a := issuance.NewAttempt("a1", issuance.NetworkDevnet, "payer", nil, time.Now())
	assert.ErrorIs(t, r.Save(ctx, a), issuance.ErrAttemptNotFound)
	require.NoError(t, r.Create(ctx, a))

	a.Distribution = &issuance.DistributionResult{UserShare: big.NewInt(7), ReserveShare: big.NewInt(3)}
	require.NoError(t, r.Save(ctx, a))

	// caller mutation after Save must not reach the store
	a.Distribution.UserShare.SetInt64(999)

	got, err := r.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "7", got.Distribution.UserShare.String())
}

func TestAttemptRepositoryMem_ListByPhase(t *testing.T) {
	ctx := context.Background()
	r := NewAttemptRepositoryMem()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, p := range []issuance.Phase{issuance.PhaseFailed, issuance.PhaseCompleted, issuance.PhaseFailed, issuance.PhaseMinting} {
		a := issuance.NewAttempt(string(rune('a'+i)), issuance.NetworkDevnet, "payer", nil, base.Add(time.Duration(i)*time.Minute))
		a.Phase = p
		require.NoError(t, r.Create(ctx, a))
	}

	list, err := r.ListByPhase(ctx, []issuance.Phase{issuance.PhaseFailed, issuance.PhaseMinting}, 0)
	require.NoError(t, err)
	ids := []string{}
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"d", "c", "a"}, ids)

	list, err = r.ListByPhase(ctx, []issuance.Phase{issuance.PhaseFailed}, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c", list[0].ID)
}

func TestReserveKeyVaultMem(t *testing.T) {
	v := NewReserveKeyVaultMem()
	_, err := v.Store(context.Background(), "a1", issuance.Credential{})
	assert.ErrorIs(t, err, issuance.ErrInvalidCredential)

	cred := issuance.Credential{Address: "addr", PrivateKey: make([]byte, 64)}
	ref, err := v.Store(context.Background(), "a1", cred)
	require.NoError(t, err)
	assert.Equal(t, "memory://a1", ref)

	got, ok := v.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "addr", got.Address)
}
