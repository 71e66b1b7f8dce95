// internal/application/issuance/ports.go
package issuance

import (
	"context"
	"io"

	issuancedom "tokenissuer/internal/domain/issuance"
)

// ============================================================
// Ports
// ============================================================

// CredentialCodec seals the resume state into an opaque token and opens it again.
// binding is the request fingerprint; a token only opens with the same request fields.
type CredentialCodec interface {
	Encode(st issuancedom.ResumeState, binding []byte) (string, error)
	Decode(token string, binding []byte) (issuancedom.ResumeState, error)
}

// ReserveKeyVault takes custody of a reserve keypair generated for one attempt and
// returns a reference to where it was stored.
type ReserveKeyVault interface {
	Store(ctx context.Context, attemptID string, cred issuancedom.Credential) (string, error)
}

// RemediationNotifier tells an operator about an attempt that stopped half way.
type RemediationNotifier interface {
	NotifyRemediation(ctx context.Context, a issuancedom.Attempt) error
}

// LogoStore は添付ロゴを公開 URL で参照できる場所に置く（HTTP adapter から利用）。
type LogoStore interface {
	UploadLogo(ctx context.Context, fileName, contentType string, r io.Reader) (publicURL string, err error)
}
