// internal/infra/solana/ledger_client.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"tokenissuer/internal/domain/issuance"
)

const (
	defaultDevnetRPC  = rpc.DevnetRPCEndpoint
	defaultMainnetRPC = rpc.MainnetRPCEndpoint

	defaultCallTimeout    = 20 * time.Second
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 1500 * time.Millisecond
)

var (
	ErrAmountOverflow    = errors.New("solana: amount does not fit into u64")
	ErrAuthorityMismatch = errors.New("solana: mint authority must be the paying credential")
	ErrMetadataAddress   = errors.New("solana: metadata address does not match mint")
	ErrTransactionFailed = errors.New("solana: transaction failed on chain")
)

// rpcAPI is the subset of *client.Client the ledger adapter needs.
type rpcAPI interface {
	GetBalance(ctx context.Context, base58Addr string) (uint64, error)
	RequestAirdrop(ctx context.Context, base58Addr string, lamports uint64) (string, error)
	GetLatestBlockhash(ctx context.Context) (rpc.GetLatestBlockhashValue, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (uint64, error)
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
	GetSignatureStatus(ctx context.Context, signature string) (*rpc.SignatureStatus, error)
	GetAccountInfo(ctx context.Context, base58Addr string) (client.AccountInfo, error)
}

// LedgerConfig holds per-cluster settings. Zero durations fall back to defaults.
type LedgerConfig struct {
	Network        issuance.Network
	RPCURL         string
	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// LedgerClient は blocto/solana-go-sdk を使った issuance.Ledger の実装です。
// クラスタごとに 1 インスタンスを DI で組み立てて渡します（グローバル接続は持たない）。
type LedgerClient struct {
	rpc rpcAPI
	cfg LedgerConfig
}

var _ issuance.Ledger = (*LedgerClient)(nil)

// NewLedgerClient builds a client for cfg.Network. An empty RPCURL resolves to the public endpoint.
func NewLedgerClient(cfg LedgerConfig) *LedgerClient {
	u := strings.TrimSpace(cfg.RPCURL)
	if u == "" {
		u = DefaultRPCURL(cfg.Network)
	}
	cfg.RPCURL = u
	return newLedgerClient(client.NewClient(u), cfg)
}

func newLedgerClient(r rpcAPI, cfg LedgerConfig) *LedgerClient {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &LedgerClient{rpc: r, cfg: cfg}
}

// DefaultRPCURL returns the public RPC endpoint of n.
func DefaultRPCURL(n issuance.Network) string {
	if n == issuance.NetworkMainnet {
		return defaultMainnetRPC
	}
	return defaultDevnetRPC
}

// ============================================================
// Credentials
// ============================================================

func (c *LedgerClient) NewCredential() (issuance.Credential, error) {
	acc := types.NewAccount()
	return issuance.CredentialFromPrivateKey(acc.PrivateKey)
}

func toAccount(cred issuance.Credential) (types.Account, error) {
	if cred.IsZero() {
		return types.Account{}, issuance.ErrInvalidCredential
	}
	acc, err := types.AccountFromBytes(cred.PrivateKey)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", issuance.ErrInvalidCredential, err)
	}
	return acc, nil
}

func parsePublicKey(s string) (common.PublicKey, error) {
	s = strings.TrimSpace(s)
	if err := issuance.ValidateAddress(s); err != nil {
		return common.PublicKey{}, err
	}
	return common.PublicKeyFromString(s), nil
}

// ============================================================
// Read-only operations
// ============================================================

func (c *LedgerClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	if _, err := parsePublicKey(address); err != nil {
		return 0, issuance.Rejected("getBalance", err)
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	bal, err := c.rpc.GetBalance(cctx, address)
	if err != nil {
		return 0, classify("getBalance", err)
	}
	return bal, nil
}

func (c *LedgerClient) DeriveMetadataAddress(mint string) (string, error) {
	pk, err := parsePublicKey(mint)
	if err != nil {
		return "", err
	}
	pda, err := deriveMetadataPDA(pk)
	if err != nil {
		return "", err
	}
	return pda.ToBase58(), nil
}

// deriveMetadataPDA computes ["metadata", program id, mint] under the token metadata program.
func deriveMetadataPDA(mint common.PublicKey) (common.PublicKey, error) {
	pda, _, err := common.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			common.MetaplexTokenMetaProgramID.Bytes(),
			mint.Bytes(),
		},
		common.MetaplexTokenMetaProgramID,
	)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("FindProgramAddress: %w", err)
	}
	return pda, nil
}

// ============================================================
// Mutating operations
// ============================================================

// RequestTestFunds airdrops lamports on devnet and waits for the airdrop to confirm.
func (c *LedgerClient) RequestTestFunds(ctx context.Context, address string, lamports uint64) error {
	if c.cfg.Network != issuance.NetworkDevnet {
		return issuance.Rejected("requestAirdrop", fmt.Errorf("airdrop is not available on %s", c.cfg.Network))
	}
	if _, err := parsePublicKey(address); err != nil {
		return issuance.Rejected("requestAirdrop", err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	sig, err := c.rpc.RequestAirdrop(cctx, address, lamports)
	cancel()
	if err != nil {
		return classify("requestAirdrop", err)
	}

	log.Printf("[solana_ledger] airdrop requested to=%s lamports=%d sig=%s", maskShort(address), lamports, maskShort(sig))
	return c.waitConfirmed(ctx, "requestAirdrop", sig)
}

func (c *LedgerClient) CreateMint(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error) {
	payer, err := toAccount(authority)
	if err != nil {
		return "", issuance.Rejected("createMint", err)
	}
	mint := types.NewAccount()

	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	rent, err := c.rpc.GetMinimumBalanceForRentExemption(cctx, token.MintAccountSize)
	cancel()
	if err != nil {
		return "", classify("createMint", err)
	}

	_, err = c.send(ctx, "createMint", []types.Account{payer, mint}, payer.PublicKey,
		system.CreateAccount(system.CreateAccountParam{
			From:     payer.PublicKey,
			New:      mint.PublicKey,
			Owner:    common.TokenProgramID,
			Lamports: rent,
			Space:    token.MintAccountSize,
		}),
		// freeze authority なし
		token.InitializeMint(token.InitializeMintParam{
			Decimals:   decimals,
			Mint:       mint.PublicKey,
			MintAuth:   payer.PublicKey,
			FreezeAuth: nil,
		}),
	)
	if err != nil {
		return "", err
	}

	log.Printf("[solana_ledger] mint created mint=%s decimals=%d authority=%s",
		maskShort(mint.PublicKey.ToBase58()), decimals, maskShort(payer.PublicKey.ToBase58()))
	return mint.PublicKey.ToBase58(), nil
}

func (c *LedgerClient) ResolveOrCreateTokenAccount(ctx context.Context, payerCred issuance.Credential, mint, owner string) (string, error) {
	payer, err := toAccount(payerCred)
	if err != nil {
		return "", issuance.Rejected("createTokenAccount", err)
	}
	mintPK, err := parsePublicKey(mint)
	if err != nil {
		return "", issuance.Rejected("createTokenAccount", err)
	}
	ownerPK, err := parsePublicKey(owner)
	if err != nil {
		return "", issuance.Rejected("createTokenAccount", err)
	}

	ata, _, err := common.FindAssociatedTokenAddress(ownerPK, mintPK)
	if err != nil {
		return "", issuance.Rejected("createTokenAccount", fmt.Errorf("FindAssociatedTokenAddress: %w", err))
	}

	exists, err := c.accountExists(ctx, ata.ToBase58())
	if err != nil {
		return "", classify("createTokenAccount", err)
	}
	if exists {
		return ata.ToBase58(), nil
	}

	_, err = c.send(ctx, "createTokenAccount", []types.Account{payer}, payer.PublicKey,
		associated_token_account.CreateAssociatedTokenAccount(
			associated_token_account.CreateAssociatedTokenAccountParam{
				Funder:                 payer.PublicKey,
				Owner:                  ownerPK,
				Mint:                   mintPK,
				AssociatedTokenAccount: ata,
			},
		),
	)
	if err != nil {
		// 並行作成などで既に存在していれば成功扱い
		if errors.Is(err, issuance.ErrLedgerRejected) {
			if ok, _ := c.accountExists(ctx, ata.ToBase58()); ok {
				return ata.ToBase58(), nil
			}
		}
		return "", err
	}

	log.Printf("[solana_ledger] token account created ata=%s owner=%s mint=%s",
		maskShort(ata.ToBase58()), maskShort(owner), maskShort(mint))
	return ata.ToBase58(), nil
}

func (c *LedgerClient) MintTo(ctx context.Context, payerCred issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
	payer, err := toAccount(payerCred)
	if err != nil {
		return issuance.Rejected("mintTo", err)
	}
	if amount == nil || amount.Sign() < 0 || !amount.IsUint64() {
		return issuance.Rejected("mintTo", ErrAmountOverflow)
	}
	if strings.TrimSpace(authority) != payer.PublicKey.ToBase58() {
		return issuance.Rejected("mintTo", ErrAuthorityMismatch)
	}
	mintPK, err := parsePublicKey(mint)
	if err != nil {
		return issuance.Rejected("mintTo", err)
	}
	toPK, err := parsePublicKey(tokenAccount)
	if err != nil {
		return issuance.Rejected("mintTo", err)
	}

	sig, err := c.send(ctx, "mintTo", []types.Account{payer}, payer.PublicKey,
		token.MintTo(token.MintToParam{
			Mint:   mintPK,
			To:     toPK,
			Auth:   payer.PublicKey,
			Amount: amount.Uint64(),
		}),
	)
	if err != nil {
		return err
	}

	log.Printf("[solana_ledger] mintTo ok mint=%s to=%s amount=%s sig=%s",
		maskShort(mint), maskShort(tokenAccount), amount.String(), maskShort(sig))
	return nil
}

func (c *LedgerClient) SubmitMetadataAttachment(ctx context.Context, payerCred issuance.Credential, mint, metadataAddress string, fields issuance.MetadataFields) (string, error) {
	payer, err := toAccount(payerCred)
	if err != nil {
		return "", issuance.Rejected("createMetadata", err)
	}
	mintPK, err := parsePublicKey(mint)
	if err != nil {
		return "", issuance.Rejected("createMetadata", err)
	}
	pda, err := deriveMetadataPDA(mintPK)
	if err != nil {
		return "", issuance.Rejected("createMetadata", err)
	}
	if pda.ToBase58() != strings.TrimSpace(metadataAddress) {
		return "", issuance.Rejected("createMetadata", ErrMetadataAddress)
	}

	sig, err := c.send(ctx, "createMetadata", []types.Account{payer}, payer.PublicKey,
		token_metadata.CreateMetadataAccountV3(
			token_metadata.CreateMetadataAccountV3Param{
				Metadata:                pda,
				Mint:                    mintPK,
				MintAuthority:           payer.PublicKey,
				UpdateAuthority:         payer.PublicKey,
				Payer:                   payer.PublicKey,
				UpdateAuthorityIsSigner: true,
				IsMutable:               fields.IsMutable,
				Data: token_metadata.DataV2{
					Name:                 fields.Name,
					Symbol:               fields.Symbol,
					Uri:                  fields.URI,
					SellerFeeBasisPoints: fields.SellerFeeBasisPoints,
					Creators:             nil,
				},
				CollectionDetails: nil,
			},
		),
	)
	if err != nil {
		return "", err
	}

	log.Printf("[solana_ledger] metadata attached mint=%s metadata=%s sig=%s",
		maskShort(mint), maskShort(metadataAddress), maskShort(sig))
	return sig, nil
}

// ============================================================
// Transaction helpers
// ============================================================

// send builds, signs, broadcasts and confirms one transaction.
// Failures before broadcast are classified normally; after broadcast only
// "rejected on chain" or "outcome unknown" are possible.
func (c *LedgerClient) send(ctx context.Context, op string, signers []types.Account, feePayer common.PublicKey, ixs ...types.Instruction) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	recent, err := c.rpc.GetLatestBlockhash(cctx)
	if err != nil {
		return "", classify(op, err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: signers,
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer,
			RecentBlockhash: recent.Blockhash,
			Instructions:    ixs,
		}),
	})
	if err != nil {
		return "", issuance.Rejected(op, fmt.Errorf("NewTransaction: %w", err))
	}

	sig, err := c.rpc.SendTransaction(cctx, tx)
	if err != nil {
		return "", classifySend(op, err)
	}

	if err := c.waitConfirmed(ctx, op, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// waitConfirmed polls the signature status until it reaches confirmed commitment.
func (c *LedgerClient) waitConfirmed(ctx context.Context, op, sig string) error {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		st, err := c.rpc.GetSignatureStatus(cctx, sig)
		if err == nil && st != nil {
			if st.Err != nil {
				return issuance.Rejected(op, fmt.Errorf("%w: sig=%s: %v", ErrTransactionFailed, maskShort(sig), st.Err))
			}
			if st.ConfirmationStatus != nil &&
				(*st.ConfirmationStatus == rpc.CommitmentConfirmed || *st.ConfirmationStatus == rpc.CommitmentFinalized) {
				return nil
			}
		} else if err != nil {
			log.Printf("[solana_ledger] WARN: status poll failed op=%s sig=%s err=%v", op, maskShort(sig), err)
		}

		select {
		case <-cctx.Done():
			return issuance.OutcomeUnknown(op, fmt.Errorf("sig=%s not confirmed: %w", sig, cctx.Err()))
		case <-ticker.C:
		}
	}
}

func (c *LedgerClient) accountExists(ctx context.Context, address string) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	info, err := c.rpc.GetAccountInfo(cctx, address)
	if err == nil {
		return info.Lamports > 0, nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") ||
		strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "account does not exist") {
		return false, nil
	}
	return false, err
}

// ============================================================
// Error classification
// ============================================================

// JSON-RPC codes that indicate a node-side transient condition.
var transientRPCCodes = map[int]bool{
	-32004: true, // block not available
	-32005: true, // node unhealthy / behind
	-32014: true, // block status not yet available
	-32016: true, // min context slot not reached
	429:    true,
}

// classify maps an RPC failure to ErrLedgerUnavailable or ErrLedgerRejected.
// Anything that is not a JSON-RPC error object (dial, TLS, HTTP, timeout) is transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *rpc.JsonRpcError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		if transientRPCCodes[rpcErr.Code] ||
			strings.Contains(msg, "rate limit") ||
			strings.Contains(msg, "too many requests") {
			return issuance.Unavailable(op, err)
		}
		return issuance.Rejected(op, err)
	}
	return issuance.Unavailable(op, err)
}

// classifySend is classify for sendTransaction. Only a JSON-RPC error body or a failed
// dial proves the node never accepted the transaction; anything else may have been broadcast.
func classifySend(op string, err error) error {
	var rpcErr *rpc.JsonRpcError
	if errors.As(err, &rpcErr) {
		return classify(op, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return issuance.Unavailable(op, err)
	}
	return issuance.OutcomeUnknown(op, err)
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
