// internal/infra/credential/sealed_codec.go
package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"

	"tokenissuer/internal/domain/issuance"
)

// KeySize is the sealing key length (XChaCha20-Poly1305).
const KeySize = chacha20poly1305.KeySize

const (
	tokenVersion byte = 1
	aadLabel          = "tokenissuer/resume/v1"
	plainSize         = 16 + ed25519.PrivateKeySize
)

var ErrKeySize = errors.New("credential: sealing key must be 32 bytes")

// ResumeState is issuance.ResumeState.
type ResumeState = issuance.ResumeState

// SealedCodec turns a ResumeState into an opaque, authenticated transport string.
// The raw private key never crosses the server boundary in the clear: the token is
// encrypted with a server-held key and bound to the original request fingerprint.
type SealedCodec struct {
	key []byte
}

func NewSealedCodec(key []byte) (*SealedCodec, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return &SealedCodec{key: append([]byte(nil), key...)}, nil
}

// Encode seals st. binding is typically Request.Fingerprint().
func (c *SealedCodec) Encode(st ResumeState, binding []byte) (string, error) {
	id, err := uuid.Parse(st.AttemptID)
	if err != nil {
		return "", fmt.Errorf("credential: attempt id: %w", err)
	}
	if len(st.Credential.PrivateKey) != ed25519.PrivateKeySize {
		return "", issuance.ErrInvalidCredential
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("credential: aead: %w", err)
	}

	plain := make([]byte, 0, plainSize)
	plain = append(plain, id[:]...)
	plain = append(plain, st.Credential.PrivateKey...)

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plain)+aead.Overhead())
	out[0] = tokenVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return "", fmt.Errorf("credential: nonce: %w", err)
	}
	out = aead.Seal(out, out[1:1+aead.NonceSize()], plain, additionalData(binding))
	clear(plain)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode opens a token produced by Encode with the same key and binding.
// Any mismatch yields issuance.ErrInvalidResumeToken.
func (c *SealedCodec) Decode(token string, binding []byte) (ResumeState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ResumeState{}, issuance.ErrInvalidResumeToken
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return ResumeState{}, fmt.Errorf("credential: aead: %w", err)
	}
	if len(raw) < 1+aead.NonceSize()+aead.Overhead() || raw[0] != tokenVersion {
		return ResumeState{}, issuance.ErrInvalidResumeToken
	}

	nonce := raw[1 : 1+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, raw[1+aead.NonceSize():], additionalData(binding))
	if err != nil || len(plain) != plainSize {
		return ResumeState{}, issuance.ErrInvalidResumeToken
	}
	defer clear(plain)

	id, err := uuid.FromBytes(plain[:16])
	if err != nil {
		return ResumeState{}, issuance.ErrInvalidResumeToken
	}
	cred, err := issuance.CredentialFromPrivateKey(plain[16:])
	if err != nil {
		return ResumeState{}, issuance.ErrInvalidResumeToken
	}
	return ResumeState{AttemptID: id.String(), Credential: cred}, nil
}

func additionalData(binding []byte) []byte {
	ad := make([]byte, 0, len(aadLabel)+len(binding))
	ad = append(ad, aadLabel...)
	return append(ad, binding...)
}

// DecodeKey parses a base64 (std or url, padded or not) sealing key.
func DecodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			if len(b) != KeySize {
				return nil, ErrKeySize
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf("credential: sealing key is not base64")
}

// GenerateKey returns a fresh random sealing key.
func GenerateKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return k, nil
}
