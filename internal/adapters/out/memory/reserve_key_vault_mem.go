// internal/adapters/out/memory/reserve_key_vault_mem.go
package memory

import (
	"context"
	"strings"
	"sync"

	issuanceapp "tokenissuer/internal/application/issuance"
	"tokenissuer/internal/domain/issuance"
)

// ReserveKeyVaultMem holds generated reserve keys in memory. Development only:
// keys are lost on restart together with the reserve tokens they control.
type ReserveKeyVaultMem struct {
	mu   sync.Mutex
	keys map[string]issuance.Credential
}

var _ issuanceapp.ReserveKeyVault = (*ReserveKeyVaultMem)(nil)

func NewReserveKeyVaultMem() *ReserveKeyVaultMem {
	return &ReserveKeyVaultMem{keys: map[string]issuance.Credential{}}
}

func (v *ReserveKeyVaultMem) Store(ctx context.Context, attemptID string, cred issuance.Credential) (string, error) {
	if cred.IsZero() {
		return "", issuance.ErrInvalidCredential
	}
	id := strings.TrimSpace(attemptID)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[id] = cred
	return "memory://" + id, nil
}

// Get returns the stored reserve credential of attemptID.
func (v *ReserveKeyVaultMem) Get(attemptID string) (issuance.Credential, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.keys[strings.TrimSpace(attemptID)]
	return c, ok
}
