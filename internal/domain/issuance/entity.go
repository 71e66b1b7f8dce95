// internal/domain/issuance/entity.go
package issuance

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

// ------------------------------------------------------
// Network
// ------------------------------------------------------

// Network は発行先のクラスタ識別子です。
// 値は閉じた列挙（devnet / mainnet-beta）のみ。
type Network string

const (
	// NetworkDevnet は faucet で自己資金化できるテストネットワーク。
	NetworkDevnet Network = "devnet"
	// NetworkMainnet は外部からの入金が必要な本番ネットワーク。
	NetworkMainnet Network = "mainnet-beta"
)

// FundingThreshold は支払いウォレットに必要な最小残高（lamports）。0.1 SOL。
const FundingThreshold uint64 = 100_000_000

// SelfFunded reports whether the network funds the payer through a faucet request.
func (n Network) SelfFunded() bool {
	return n == NetworkDevnet
}

func (n Network) String() string { return string(n) }

// ParseNetwork accepts only the two supported cluster names.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.TrimSpace(s)) {
	case NetworkDevnet:
		return NetworkDevnet, nil
	case NetworkMainnet:
		return NetworkMainnet, nil
	default:
		return "", newValidationError("network", "must be devnet or mainnet-beta")
	}
}

// ------------------------------------------------------
// Request
// ------------------------------------------------------

// Metaplex の DataV2 上限
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// RequestInput はフォームから受け取った生の値です（未検証）。
type RequestInput struct {
	Network     string
	Name        string
	Symbol      string
	MetadataURI string
	TotalSupply string
	Decimals    string
	Socials     string
	Recipient   string
	LogoURL     string
}

// Request は 1 回の発行試行に対する検証済み・不変の入力です。
// Fields are unexported so a Request can only be built through NewRequest.
type Request struct {
	network     Network
	name        string
	symbol      string
	metadataURI string
	totalSupply *big.Int
	decimals    uint8
	socials     json.RawMessage
	recipient   string
	logoURL     string
}

// NewRequest validates raw input. No ledger call happens before this succeeds.
func NewRequest(in RequestInput) (Request, error) {
	network, err := ParseNetwork(in.Network)
	if err != nil {
		return Request{}, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > MaxNameLength {
		return Request{}, newValidationError("tokenName", "must be 1..32 bytes")
	}

	symbol := strings.TrimSpace(in.Symbol)
	if symbol == "" || len(symbol) > MaxSymbolLength {
		return Request{}, newValidationError("tokenSymbol", "must be 1..10 bytes")
	}

	uri := strings.TrimSpace(in.MetadataURI)
	if err := validateMetadataURI(uri); err != nil {
		return Request{}, err
	}

	supply, ok := new(big.Int).SetString(strings.TrimSpace(in.TotalSupply), 10)
	if !ok || supply.Sign() < 0 {
		return Request{}, newValidationError("totalSupply", "must be a non-negative integer")
	}

	dec, err := strconv.ParseUint(strings.TrimSpace(in.Decimals), 10, 8)
	if err != nil {
		return Request{}, newValidationError("decimals", "must be an integer in 0..255")
	}

	recipient := strings.TrimSpace(in.Recipient)
	if err := ValidateAddress(recipient); err != nil {
		return Request{}, newValidationError("userWallet", err.Error())
	}

	logo := strings.TrimSpace(in.LogoURL)
	if logo != "" {
		u, err := url.Parse(logo)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return Request{}, newValidationError("logoUrl", "must be an absolute URL")
		}
	}

	var socials json.RawMessage
	if s := strings.TrimSpace(in.Socials); s != "" {
		socials = json.RawMessage(s)
	}

	return Request{
		network:     network,
		name:        name,
		symbol:      symbol,
		metadataURI: uri,
		totalSupply: supply,
		decimals:    uint8(dec),
		socials:     socials,
		recipient:   recipient,
		logoURL:     logo,
	}, nil
}

func validateMetadataURI(uri string) error {
	if uri == "" || len(uri) > MaxURILength {
		return newValidationError("metadataUri", "must be 1..200 bytes")
	}
	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() {
		return newValidationError("metadataUri", "must be an absolute URI")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ar", "ipfs":
		return nil
	default:
		return newValidationError("metadataUri", "unsupported scheme "+u.Scheme)
	}
}

func (r Request) Network() Network      { return r.network }
func (r Request) Name() string          { return r.name }
func (r Request) Symbol() string        { return r.symbol }
func (r Request) MetadataURI() string   { return r.metadataURI }
func (r Request) Decimals() uint8       { return r.decimals }
func (r Request) Recipient() string     { return r.recipient }
func (r Request) LogoURL() string       { return r.logoURL }
func (r Request) RawSocials() []byte    { return append([]byte(nil), r.socials...) }
func (r Request) TotalSupply() *big.Int { return new(big.Int).Set(r.totalSupply) }

// Input echoes the request back in its raw form (suspended responses carry it for resubmission).
func (r Request) Input() RequestInput {
	return RequestInput{
		Network:     string(r.network),
		Name:        r.name,
		Symbol:      r.symbol,
		MetadataURI: r.metadataURI,
		TotalSupply: r.totalSupply.String(),
		Decimals:    strconv.FormatUint(uint64(r.decimals), 10),
		Socials:     string(r.socials),
		Recipient:   r.recipient,
		LogoURL:     r.logoURL,
	}
}

// Fingerprint は正規化済みフィールドの SHA-256 です。
// resume token はこの値に束縛されるため、再送時にフィールドを差し替えると復号に失敗します。
func (r Request) Fingerprint() []byte {
	h := sha256.New()
	for _, f := range []string{
		string(r.network),
		r.name,
		r.symbol,
		r.metadataURI,
		r.totalSupply.String(),
		strconv.FormatUint(uint64(r.decimals), 10),
		string(r.socials),
		r.recipient,
		r.logoURL,
	} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(f)))
		h.Write(n[:])
		h.Write([]byte(f))
	}
	return h.Sum(nil)
}

// ------------------------------------------------------
// Credential
// ------------------------------------------------------

// Credential is the paying keypair of one attempt. Whoever holds it can spend from Address.
type Credential struct {
	Address    string
	PrivateKey ed25519.PrivateKey
}

// CredentialFromPrivateKey rebuilds a credential from 64 ed25519 key bytes.
func CredentialFromPrivateKey(priv []byte) (Credential, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Credential{}, ErrInvalidCredential
	}
	key := ed25519.PrivateKey(append([]byte(nil), priv...))
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return Credential{}, ErrInvalidCredential
	}
	return Credential{Address: base58.Encode(pub), PrivateKey: key}, nil
}

// IsZero reports an unset credential.
func (c Credential) IsZero() bool {
	return c.Address == "" && len(c.PrivateKey) == 0
}

// String never prints key material.
func (c Credential) String() string {
	return "Credential(" + c.Address + ")"
}

// ValidateAddress checks that s is base58 decoding to a 32-byte public key.
func ValidateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrInvalidAddress
	}
	b, err := base58.Decode(s)
	if err != nil || len(b) != ed25519.PublicKeySize {
		return ErrInvalidAddress
	}
	return nil
}
