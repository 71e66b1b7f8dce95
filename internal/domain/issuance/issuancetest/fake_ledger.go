// Package issuancetest provides in-memory collaborators for issuance tests.
package issuancetest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"

	"github.com/mr-tron/base58"

	"tokenissuer/internal/domain/issuance"
)

// FakeLedger simulates a ledger in memory. Any *Func field overrides the default behaviour.
type FakeLedger struct {
	GetBalanceFunc                  func(ctx context.Context, address string) (uint64, error)
	RequestTestFundsFunc            func(ctx context.Context, address string, lamports uint64) error
	CreateMintFunc                  func(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error)
	ResolveOrCreateTokenAccountFunc func(ctx context.Context, payer issuance.Credential, mint, owner string) (string, error)
	MintToFunc                      func(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error
	SubmitMetadataAttachmentFunc    func(ctx context.Context, payer issuance.Credential, mint, metadataAddress string, fields issuance.MetadataFields) (string, error)

	mu       sync.Mutex
	balances map[string]uint64
	accounts map[string]string
	supply   map[string]*big.Int
	calls    map[string]int
	mintTos  []MintToCall
}

// MintToCall records one MintTo invocation.
type MintToCall struct {
	Mint         string
	TokenAccount string
	Amount       *big.Int
}

var _ issuance.Ledger = (*FakeLedger)(nil)

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		balances: map[string]uint64{},
		accounts: map[string]string{},
		supply:   map[string]*big.Int{},
		calls:    map[string]int{},
	}
}

// SetBalance sets the lamport balance of address.
func (l *FakeLedger) SetBalance(address string, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] = lamports
}

// Calls returns how many times op was invoked.
func (l *FakeLedger) Calls(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// MutatingCalls counts every call that changes ledger state.
func (l *FakeLedger) MutatingCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls["CreateMint"] + l.calls["ResolveOrCreateTokenAccount"] + l.calls["MintTo"] + l.calls["SubmitMetadataAttachment"]
}

// MintTos returns the recorded MintTo calls in order.
func (l *FakeLedger) MintTos() []MintToCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]MintToCall(nil), l.mintTos...)
}

// Supply returns the minted supply of mint.
func (l *FakeLedger) Supply(mint string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.supply[mint]; ok {
		return new(big.Int).Set(s)
	}
	return new(big.Int)
}

func (l *FakeLedger) count(op string) {
	l.mu.Lock()
	l.calls[op]++
	l.mu.Unlock()
}

func (l *FakeLedger) NewCredential() (issuance.Credential, error) {
	l.count("NewCredential")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return issuance.Credential{}, err
	}
	return issuance.CredentialFromPrivateKey(priv)
}

func (l *FakeLedger) GetBalance(ctx context.Context, address string) (uint64, error) {
	l.count("GetBalance")
	if l.GetBalanceFunc != nil {
		return l.GetBalanceFunc(ctx, address)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[address], nil
}

func (l *FakeLedger) RequestTestFunds(ctx context.Context, address string, lamports uint64) error {
	l.count("RequestTestFunds")
	if l.RequestTestFundsFunc != nil {
		return l.RequestTestFundsFunc(ctx, address, lamports)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] += lamports
	return nil
}

func (l *FakeLedger) CreateMint(ctx context.Context, authority issuance.Credential, decimals uint8) (string, error) {
	l.count("CreateMint")
	if l.CreateMintFunc != nil {
		return l.CreateMintFunc(ctx, authority, decimals)
	}
	cred, err := l.NewCredential()
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supply[cred.Address] = new(big.Int)
	return cred.Address, nil
}

func (l *FakeLedger) ResolveOrCreateTokenAccount(ctx context.Context, payer issuance.Credential, mint, owner string) (string, error) {
	l.count("ResolveOrCreateTokenAccount")
	if l.ResolveOrCreateTokenAccountFunc != nil {
		return l.ResolveOrCreateTokenAccountFunc(ctx, payer, mint, owner)
	}
	key := owner + "/" + mint
	l.mu.Lock()
	defer l.mu.Unlock()
	if addr, ok := l.accounts[key]; ok {
		return addr, nil
	}
	sum := sha256.Sum256([]byte(key))
	addr := base58.Encode(sum[:])
	l.accounts[key] = addr
	return addr, nil
}

func (l *FakeLedger) MintTo(ctx context.Context, payer issuance.Credential, mint, tokenAccount, authority string, amount *big.Int) error {
	l.count("MintTo")
	if l.MintToFunc != nil {
		if err := l.MintToFunc(ctx, payer, mint, tokenAccount, authority, amount); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if authority != payer.Address {
		return issuance.Rejected("mintTo", fmt.Errorf("authority mismatch"))
	}
	s, ok := l.supply[mint]
	if !ok {
		s = new(big.Int)
		l.supply[mint] = s
	}
	s.Add(s, amount)
	l.mintTos = append(l.mintTos, MintToCall{Mint: mint, TokenAccount: tokenAccount, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *FakeLedger) DeriveMetadataAddress(mint string) (string, error) {
	sum := sha256.Sum256([]byte("metadata/" + mint))
	return base58.Encode(sum[:]), nil
}

func (l *FakeLedger) SubmitMetadataAttachment(ctx context.Context, payer issuance.Credential, mint, metadataAddress string, fields issuance.MetadataFields) (string, error) {
	l.count("SubmitMetadataAttachment")
	if l.SubmitMetadataAttachmentFunc != nil {
		return l.SubmitMetadataAttachmentFunc(ctx, payer, mint, metadataAddress, fields)
	}
	sum := sha256.Sum256([]byte("tx/" + metadataAddress))
	return base58.Encode(sum[:]), nil
}
