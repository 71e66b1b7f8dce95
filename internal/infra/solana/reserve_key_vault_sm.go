// internal/infra/solana/reserve_key_vault_sm.go
package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	issuanceapp "tokenissuer/internal/application/issuance"
	"tokenissuer/internal/domain/issuance"
)

// ReserveKeyVaultSM は attempt ごとに生成した reserve 受取ウォレットの秘密鍵を
// GCP Secret Manager に保管します。
// - Secret ID: "issuance-reserve-<attemptID>"
// - Payload: [int,int,...] 形式（solana-keygen の keypair JSON と同じ）
type ReserveKeyVaultSM struct {
	projectID string
	client    *secretmanager.Client
}

var _ issuanceapp.ReserveKeyVault = (*ReserveKeyVaultSM)(nil)

// NewReserveKeyVaultSM opens a Secret Manager client for projectID. Close it on shutdown.
func NewReserveKeyVaultSM(ctx context.Context, projectID string) (*ReserveKeyVaultSM, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		return nil, fmt.Errorf("ReserveKeyVaultSM: projectID is empty")
	}
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReserveKeyVaultSM: secretmanager.NewClient: %w", err)
	}
	return &ReserveKeyVaultSM{projectID: pid, client: c}, nil
}

func (v *ReserveKeyVaultSM) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

// SecretIDFor returns the secret id that holds the reserve key of attemptID.
func SecretIDFor(attemptID string) string {
	return "issuance-reserve-" + strings.TrimSpace(attemptID)
}

// Store writes cred as a new secret version and returns its version name.
func (v *ReserveKeyVaultSM) Store(ctx context.Context, attemptID string, cred issuance.Credential) (string, error) {
	if strings.TrimSpace(attemptID) == "" {
		return "", fmt.Errorf("ReserveKeyVaultSM: attemptID is empty")
	}
	if cred.IsZero() {
		return "", issuance.ErrInvalidCredential
	}

	ints := make([]int, len(cred.PrivateKey))
	for i, b := range cred.PrivateKey {
		ints[i] = int(b)
	}
	payload, err := json.Marshal(ints)
	if err != nil {
		return "", fmt.Errorf("ReserveKeyVaultSM: marshal key: %w", err)
	}

	secretID := SecretIDFor(attemptID)
	parent := fmt.Sprintf("projects/%s", v.projectID)
	secretName := fmt.Sprintf("%s/secrets/%s", parent, secretID)

	_, err = v.client.GetSecret(ctx, &secretspb.GetSecretRequest{Name: secretName})
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return "", fmt.Errorf("ReserveKeyVaultSM: GetSecret %s: %w", secretID, err)
		}
		_, cerr := v.client.CreateSecret(ctx, &secretspb.CreateSecretRequest{
			Parent:   parent,
			SecretId: secretID,
			Secret: &secretspb.Secret{
				Labels: map[string]string{"purpose": "issuance-reserve"},
				Replication: &secretspb.Replication{
					Replication: &secretspb.Replication_Automatic_{
						Automatic: &secretspb.Replication_Automatic{},
					},
				},
			},
		})
		if cerr != nil && status.Code(cerr) != codes.AlreadyExists {
			return "", fmt.Errorf("ReserveKeyVaultSM: CreateSecret %s: %w", secretID, cerr)
		}
	}

	res, err := v.client.AddSecretVersion(ctx, &secretspb.AddSecretVersionRequest{
		Parent:  secretName,
		Payload: &secretspb.SecretPayload{Data: payload},
	})
	if err != nil {
		return "", fmt.Errorf("ReserveKeyVaultSM: AddSecretVersion: %w", err)
	}

	log.Printf("[reserve_vault] stored reserve key attemptId=%s owner=%s version=%s",
		attemptID, maskShort(cred.Address), res.Name)
	return res.Name, nil
}
