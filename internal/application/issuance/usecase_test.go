package issuance_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenissuer/internal/adapters/out/memory"
	issuanceapp "tokenissuer/internal/application/issuance"
	"tokenissuer/internal/domain/issuance"
	"tokenissuer/internal/domain/issuance/issuancetest"
	"tokenissuer/internal/infra/credential"
	"tokenissuer/internal/infra/retry"
)

const testRecipient = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"

type recordingNotifier struct {
	mu       sync.Mutex
	attempts []issuance.Attempt
	err      error
}

func (n *recordingNotifier) NotifyRemediation(ctx context.Context, a issuance.Attempt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts = append(n.attempts, a)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.attempts)
}

type failingVault struct{}

func (failingVault) Store(ctx context.Context, attemptID string, cred issuance.Credential) (string, error) {
	return "", errors.New("permission denied")
}

type harness struct {
	uc       *issuanceapp.Usecase
	devnet   *issuancetest.FakeLedger
	mainnet  *issuancetest.FakeLedger
	repo     *memory.AttemptRepositoryMem
	vault    *memory.ReserveKeyVaultMem
	notifier *recordingNotifier
	codec    *credential.SealedCodec
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := credential.GenerateKey()
	require.NoError(t, err)
	codec, err := credential.NewSealedCodec(key)
	require.NoError(t, err)

	h := &harness{
		devnet:   issuancetest.NewFakeLedger(),
		mainnet:  issuancetest.NewFakeLedger(),
		repo:     memory.NewAttemptRepositoryMem(),
		vault:    memory.NewReserveKeyVaultMem(),
		notifier: &recordingNotifier{},
		codec:    codec,
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.uc = issuanceapp.NewUsecase(map[issuance.Network]issuance.Ledger{
		issuance.NetworkDevnet:  h.devnet,
		issuance.NetworkMainnet: h.mainnet,
	}, h.repo, codec)
	h.uc.SetReserveVault(h.vault)
	h.uc.SetNotifier(h.notifier)
	h.uc.SetClock(func() time.Time { return h.now })
	return h
}

func devnetInput(supply string) issuance.RequestInput {
	return issuance.RequestInput{
		Network:     "devnet",
		Name:        "Narratives",
		Symbol:      "NRT",
		MetadataURI: "https://example.com/meta.json",
		TotalSupply: supply,
		Decimals:    "9",
		Recipient:   testRecipient,
	}
}

func mainnetInput(supply string) issuance.RequestInput {
	in := devnetInput(supply)
	in.Network = "mainnet-beta"
	in.Decimals = "0"
	return in
}

func TestStart_DevnetCompletes(t *testing.T) {
	h := newHarness(t)

	out, err := h.uc.Start(context.Background(), devnetInput("1000000000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusCompleted, out.Status, "failure: %v", out.Failure)

	require.NotNil(t, out.Mint)
	assert.Equal(t, uint8(9), out.Mint.Decimals)
	require.NotNil(t, out.Distribution)
	assert.Equal(t, "700000000", out.Distribution.UserShare.String())
	assert.Equal(t, "300000000", out.Distribution.ReserveShare.String())
	assert.NotEmpty(t, out.Distribution.UserTokenAccount)
	assert.NotEmpty(t, out.Distribution.ReserveTokenAccount)
	require.NotNil(t, out.Metadata)
	assert.NotEmpty(t, out.Metadata.Address)
	assert.NotEmpty(t, out.Metadata.TxID)
	assert.Empty(t, out.ResumeToken)

	// user share first, reserve share second
	mintTos := h.devnet.MintTos()
	require.Len(t, mintTos, 2)
	assert.Equal(t, out.Distribution.UserTokenAccount, mintTos[0].TokenAccount)
	assert.Equal(t, out.Distribution.ReserveTokenAccount, mintTos[1].TokenAccount)
	assert.Equal(t, "1000000000", h.devnet.Supply(out.Mint.MintAddress).String())

	assert.Equal(t, 1, h.devnet.Calls("RequestTestFunds"))

	// reserve key went to the vault, keyed by attempt
	reserve, ok := h.vault.Get(out.AttemptID)
	require.True(t, ok)
	assert.Equal(t, reserve.Address, out.ReserveOwner)

	stored, err := h.uc.GetAttempt(context.Background(), out.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, issuance.PhaseCompleted, stored.Phase)
	assert.Equal(t, out.Metadata.TxID, stored.Metadata.TxID)
}

func TestStart_MainnetSuspendThenResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := mainnetInput("500")

	out, err := h.uc.Start(ctx, in)
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusAwaitingFunds, out.Status)
	assert.NotEmpty(t, out.PayerAddress)
	assert.NotEmpty(t, out.ResumeToken)
	assert.Equal(t, uint64(0), out.Balance)
	assert.Equal(t, issuance.FundingThreshold, out.RequiredBalance)
	assert.Equal(t, "500", out.Request.TotalSupply)
	assert.NotContains(t, out.ResumeToken, out.PayerAddress)
	assert.Zero(t, h.mainnet.MutatingCalls())
	assert.Zero(t, h.mainnet.Calls("RequestTestFunds"))

	// still unfunded
	again, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.NoError(t, err)
	assert.Equal(t, issuanceapp.StatusInsufficientFunds, again.Status)
	assert.Equal(t, uint64(0), again.Balance)
	assert.Equal(t, out.ResumeToken, again.ResumeToken)
	assert.Zero(t, h.mainnet.MutatingCalls())

	h.mainnet.SetBalance(out.PayerAddress, issuance.FundingThreshold-1)
	again, err = h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.NoError(t, err)
	assert.Equal(t, issuanceapp.StatusInsufficientFunds, again.Status)
	assert.Equal(t, issuance.FundingThreshold-1, again.Balance)
	assert.Zero(t, h.mainnet.MutatingCalls())

	h.mainnet.SetBalance(out.PayerAddress, issuance.FundingThreshold)
	done, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusCompleted, done.Status, "failure: %v", done.Failure)
	assert.Equal(t, out.AttemptID, done.AttemptID)
	assert.Equal(t, "350", done.Distribution.UserShare.String())
	assert.Equal(t, "150", done.Distribution.ReserveShare.String())
	assert.Equal(t, 1, h.mainnet.Calls("CreateMint"))
}

func TestResume_SecondResumeNeverMintsAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.uc.Start(ctx, mainnetInput("1000"))
	require.NoError(t, err)
	h.mainnet.SetBalance(out.PayerAddress, issuance.FundingThreshold)

	first, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusCompleted, first.Status)

	second, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	assert.Nil(t, second)
	require.ErrorIs(t, err, issuance.ErrAttemptAlreadyProcessed)

	var already *issuanceapp.AlreadyProcessedError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, issuance.PhaseCompleted, already.Attempt.Phase)
	assert.Equal(t, first.Mint.MintAddress, already.Attempt.Mint.MintAddress)

	assert.Equal(t, 1, h.mainnet.Calls("CreateMint"))
	assert.Len(t, h.mainnet.MintTos(), 2)
}

func TestResume_ConcurrentResumesMintOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.uc.Start(ctx, mainnetInput("1000"))
	require.NoError(t, err)
	h.mainnet.SetBalance(out.PayerAddress, issuance.FundingThreshold)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*issuanceapp.Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
		}(i)
	}
	wg.Wait()

	completed := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], issuance.ErrAttemptAlreadyProcessed)
			continue
		}
		if results[i].Status == issuanceapp.StatusCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, h.mainnet.Calls("CreateMint"))
	assert.Len(t, h.mainnet.MintTos(), 2)
}

func TestResume_RejectsTokenForOtherRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.uc.Start(ctx, mainnetInput("1000"))
	require.NoError(t, err)
	h.mainnet.SetBalance(out.PayerAddress, issuance.FundingThreshold)

	changed := out.Request
	changed.TotalSupply = "1000000"
	_, err = h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: changed})
	assert.ErrorIs(t, err, issuance.ErrInvalidResumeToken)

	_, err = h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: "garbage", Request: out.Request})
	assert.ErrorIs(t, err, issuance.ErrInvalidResumeToken)

	assert.Zero(t, h.mainnet.MutatingCalls())
}

func TestResume_CompletedTokenAgainstEmptyStoreDoesNotMintAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.uc.Start(ctx, mainnetInput("10"))
	require.NoError(t, err)
	h.mainnet.SetBalance(out.PayerAddress, issuance.FundingThreshold)

	done, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusCompleted, done.Status)
	require.Equal(t, 1, h.mainnet.Calls("CreateMint"))
	mintTos := h.mainnet.Calls("MintTo")

	// attempt store lost its records (memory store restart) but the sealing key survived
	fresh := memory.NewAttemptRepositoryMem()
	uc := issuanceapp.NewUsecase(map[issuance.Network]issuance.Ledger{issuance.NetworkMainnet: h.mainnet}, fresh, h.codec)
	uc.SetReserveVault(h.vault)

	again, err := uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.ErrorIs(t, err, issuance.ErrInvalidResumeToken)
	assert.Nil(t, again)

	assert.Equal(t, 1, h.mainnet.Calls("CreateMint"))
	assert.Equal(t, mintTos, h.mainnet.Calls("MintTo"))
	_, err = fresh.GetByID(ctx, out.AttemptID)
	require.ErrorIs(t, err, issuance.ErrAttemptNotFound)
}

func TestResume_DevnetStillInsufficientDoesNotRequestFundsAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// faucet は成功を返すが残高が増えない
	h.devnet.RequestTestFundsFunc = func(ctx context.Context, address string, lamports uint64) error { return nil }

	out, err := h.uc.Start(ctx, devnetInput("100"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusAwaitingFunds, out.Status)
	require.Equal(t, 1, h.devnet.Calls("RequestTestFunds"))

	for i := 0; i < 3; i++ {
		res, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
		require.NoError(t, err)
		assert.Equal(t, issuanceapp.StatusInsufficientFunds, res.Status)
	}
	assert.Equal(t, 1, h.devnet.Calls("RequestTestFunds"))
	assert.Zero(t, h.devnet.MutatingCalls())

	// 外部入金後は resume で発行まで進む
	h.devnet.SetBalance(out.PayerAddress, issuance.FundingThreshold)
	res, err := h.uc.Resume(ctx, issuanceapp.ResumeInput{Token: out.ResumeToken, Request: out.Request})
	require.NoError(t, err)
	assert.Equal(t, issuanceapp.StatusCompleted, res.Status, "failure: %v", res.Failure)
	assert.Equal(t, 1, h.devnet.Calls("RequestTestFunds"))
}

func TestStart_ValidationMakesNoLedgerCalls(t *testing.T) {
	h := newHarness(t)

	in := devnetInput("-5")
	_, err := h.uc.Start(context.Background(), in)
	require.ErrorIs(t, err, issuance.ErrValidation)

	in = devnetInput("100")
	in.Recipient = "not-base58-0OIl"
	_, err = h.uc.Start(context.Background(), in)
	require.ErrorIs(t, err, issuance.ErrValidation)

	assert.Zero(t, h.devnet.Calls("NewCredential"))
	assert.Zero(t, h.devnet.Calls("GetBalance"))
	assert.Zero(t, h.devnet.MutatingCalls())
}

func TestStart_PartialDistribution(t *testing.T) {
	h := newHarness(t)

	calls := 0
	h.devnet.MintToFunc = func(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
		calls++
		if calls == 2 {
			return issuance.Rejected("mintTo", errors.New("custom program error: 0x1"))
		}
		return nil
	}

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusFailed, out.Status)
	require.NotNil(t, out.Failure)
	assert.ErrorIs(t, out.Failure, issuance.ErrPartialDistribution)
	assert.Equal(t, issuance.PhaseDistributing, out.Failure.Phase)

	require.NotNil(t, out.Distribution)
	assert.NotEmpty(t, out.Distribution.UserTokenAccount)
	assert.Empty(t, out.Distribution.ReserveTokenAccount)
	assert.Equal(t, "700", out.Distribution.UserShare.String())
	assert.Equal(t, "300", out.Distribution.ReserveShare.String())
	assert.NotEmpty(t, out.ReserveOwner)
	assert.Nil(t, out.Metadata)
	assert.Zero(t, h.devnet.Calls("SubmitMetadataAttachment"))

	assert.Equal(t, 1, h.notifier.count())

	stored, err := h.repo.GetByID(context.Background(), out.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, issuance.PhaseFailed, stored.Phase)
	assert.Equal(t, "partial_distribution", stored.FailureReason)
	assert.True(t, stored.NeedsRemediation())
}

func TestStart_FirstMintToFailureIsNotPartial(t *testing.T) {
	h := newHarness(t)
	h.devnet.MintToFunc = func(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
		return issuance.Rejected("mintTo", errors.New("custom program error: 0x1"))
	}

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusFailed, out.Status)
	assert.NotErrorIs(t, out.Failure, issuance.ErrPartialDistribution)
	assert.ErrorIs(t, out.Failure, issuance.ErrLedgerRejected)
	assert.Nil(t, out.Distribution)
	assert.NotNil(t, out.Mint)
	assert.Zero(t, h.notifier.count())
}

func TestStart_MetadataAttachFailed(t *testing.T) {
	h := newHarness(t)
	h.devnet.SubmitMetadataAttachmentFunc = func(ctx context.Context, payer issuance.Credential, mint, md string, f issuance.MetadataFields) (string, error) {
		return "", issuance.Rejected("createMetadata", errors.New("account already in use"))
	}

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusFailed, out.Status)
	assert.ErrorIs(t, out.Failure, issuance.ErrMetadataAttachFailed)
	assert.Equal(t, issuance.PhaseAttachingMetadata, out.Failure.Phase)

	require.NotNil(t, out.Distribution)
	assert.True(t, out.Distribution.Complete())
	require.NotNil(t, out.Metadata)
	assert.NotEmpty(t, out.Metadata.Address)
	assert.Empty(t, out.Metadata.TxID)
	assert.Equal(t, 1, h.notifier.count())
}

func TestStart_MetadataFields(t *testing.T) {
	h := newHarness(t)
	var got issuance.MetadataFields
	h.devnet.SubmitMetadataAttachmentFunc = func(ctx context.Context, payer issuance.Credential, mint, md string, f issuance.MetadataFields) (string, error) {
		got = f
		return "sig", nil
	}

	_, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	assert.Equal(t, "Narratives", got.Name)
	assert.Equal(t, "NRT", got.Symbol)
	assert.Equal(t, "https://example.com/meta.json", got.URI)
	assert.Zero(t, got.SellerFeeBasisPoints)
	assert.True(t, got.IsMutable)
}

func TestStart_CreateMintFailure(t *testing.T) {
	h := newHarness(t)
	h.devnet.CreateMintFunc = func(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error) {
		return "", issuance.Unavailable("createMint", errors.New("connection reset"))
	}

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusFailed, out.Status)
	assert.Equal(t, issuance.PhaseMinting, out.Failure.Phase)
	assert.ErrorIs(t, out.Failure, issuance.ErrLedgerUnavailable)
	assert.Nil(t, out.Mint)
	assert.Zero(t, h.devnet.Calls("MintTo"))
}

func TestStart_TransientFailureRetriedByDecorator(t *testing.T) {
	h := newHarness(t)
	tries := 0
	h.devnet.CreateMintFunc = func(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error) {
		tries++
		if tries == 1 {
			return "", issuance.Unavailable("createMint", errors.New("node is behind"))
		}
		return "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", nil
	}

	key, err := credential.GenerateKey()
	require.NoError(t, err)
	codec, err := credential.NewSealedCodec(key)
	require.NoError(t, err)
	wrapped := retry.NewLedger(h.devnet, retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	uc := issuanceapp.NewUsecase(map[issuance.Network]issuance.Ledger{issuance.NetworkDevnet: wrapped}, h.repo, codec)
	uc.SetReserveVault(h.vault)

	out, err := uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	assert.Equal(t, issuanceapp.StatusCompleted, out.Status)
	assert.Equal(t, 2, tries)
}

func TestStart_ReserveCustodyFailureStopsBeforeMintTo(t *testing.T) {
	h := newHarness(t)
	h.uc.SetReserveVault(failingVault{})

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusFailed, out.Status)
	assert.ErrorIs(t, out.Failure, issuance.ErrReserveCustody)
	assert.Zero(t, h.devnet.Calls("MintTo"))
}

func TestStart_FixedReserveOwner(t *testing.T) {
	h := newHarness(t)
	const owner = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	require.NoError(t, h.uc.SetReserveOwner(owner))
	require.Error(t, h.uc.SetReserveOwner("nope"))

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusCompleted, out.Status)
	assert.Equal(t, owner, out.ReserveOwner)
	_, stored := h.vault.Get(out.AttemptID)
	assert.False(t, stored)
}

func TestStart_DevnetFaucetFailure(t *testing.T) {
	h := newHarness(t)
	h.devnet.RequestTestFundsFunc = func(ctx context.Context, address string, lamports uint64) error {
		return issuance.Unavailable("requestAirdrop", errors.New("429 Too Many Requests"))
	}

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	require.Equal(t, issuanceapp.StatusFailed, out.Status)
	assert.Equal(t, issuance.PhaseAwaitingFunds, out.Failure.Phase)
	assert.Zero(t, h.devnet.MutatingCalls())
	assert.Zero(t, h.notifier.count())
}

func TestStart_MalformedSocialsIsOnlyAWarning(t *testing.T) {
	h := newHarness(t)
	in := devnetInput("1000")
	in.Socials = "{broken"

	out, err := h.uc.Start(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, issuanceapp.StatusCompleted, out.Status)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "socials")
}

func TestStart_NotifierErrorBecomesWarning(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("sendgrid: 401")
	h.devnet.SubmitMetadataAttachmentFunc = func(ctx context.Context, payer issuance.Credential, mint, md string, f issuance.MetadataFields) (string, error) {
		return "", issuance.Unavailable("createMetadata", errors.New("eof"))
	}

	out, err := h.uc.Start(context.Background(), devnetInput("1000"))
	require.NoError(t, err)
	assert.Equal(t, issuanceapp.StatusFailed, out.Status)
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[len(out.Warnings)-1], "notification")
}

func TestListRemediation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.devnet.SubmitMetadataAttachmentFunc = func(ctx context.Context, payer issuance.Credential, mint, md string, f issuance.MetadataFields) (string, error) {
		return "", issuance.Rejected("createMetadata", errors.New("boom"))
	}
	failed, err := h.uc.Start(ctx, devnetInput("1000"))
	require.NoError(t, err)

	h.devnet.SubmitMetadataAttachmentFunc = nil
	_, err = h.uc.Start(ctx, devnetInput("1000"))
	require.NoError(t, err)

	// stuck mid-flight record
	stuck := issuance.NewAttempt("11111111-2222-3333-4444-555555555555", issuance.NetworkDevnet, testRecipient, []byte{1}, h.now.Add(-time.Hour))
	stuck.Phase = issuance.PhaseDistributing
	require.NoError(t, h.repo.Create(ctx, stuck))

	list, err := h.uc.ListRemediation(ctx, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{failed.AttemptID, stuck.ID}, ids)
}

func TestStart_NetworkNotConfigured(t *testing.T) {
	key, err := credential.GenerateKey()
	require.NoError(t, err)
	codec, err := credential.NewSealedCodec(key)
	require.NoError(t, err)

	uc := issuanceapp.NewUsecase(map[issuance.Network]issuance.Ledger{
		issuance.NetworkDevnet: issuancetest.NewFakeLedger(),
	}, memory.NewAttemptRepositoryMem(), codec)
	uc.SetReserveVault(memory.NewReserveKeyVaultMem())

	_, err = uc.Start(context.Background(), mainnetInput("1"))
	assert.ErrorIs(t, err, issuanceapp.ErrNetworkNotConfigured)
}
