// internal/domain/issuance/ledger_port.go
package issuance

import (
	"context"
	"math/big"
)

// ------------------------------------------------------
// Ledger Port
// ------------------------------------------------------
//
// Hexagonal Architecture における「出力ポート」。
// Solana RPC など具体的な実装は infra 側に置き、ここにはビジネスロジックを持たない。
// すべての操作は ErrLedgerUnavailable / ErrLedgerRejected のどちらかで失敗しうる。

type Ledger interface {
	// NewCredential generates a fresh keypair. One credential serves one attempt.
	NewCredential() (Credential, error)

	GetBalance(ctx context.Context, address string) (uint64, error)

	// RequestTestFunds airdrops lamports and waits for confirmation. Faucet networks only.
	RequestTestFunds(ctx context.Context, address string, lamports uint64) error

	CreateMint(ctx context.Context, authority Credential, decimals uint8) (string, error)

	// ResolveOrCreateTokenAccount is idempotent for the same owner+mint.
	ResolveOrCreateTokenAccount(ctx context.Context, payer Credential, mint, owner string) (string, error)

	MintTo(ctx context.Context, payer Credential, mint, tokenAccount, authority string, amount *big.Int) error

	// DeriveMetadataAddress is pure: ("metadata", program id, mint) -> program-derived address.
	DeriveMetadataAddress(mint string) (string, error)

	SubmitMetadataAttachment(ctx context.Context, payer Credential, mint, metadataAddress string, fields MetadataFields) (string, error)
}
