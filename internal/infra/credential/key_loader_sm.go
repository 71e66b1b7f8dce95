// internal/infra/credential/key_loader_sm.go
package credential

import (
	"context"
	"fmt"
	"log"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// LoadKeyFromSecretManager は RESUME_TOKEN_KEY_SECRET に指定した Secret Version から
// resume token の封緘鍵（base64, 32 byte）を取得します。
//
// secretVersion には
//
//	"projects/<PROJECT_ID>/secrets/<SECRET_ID>/versions/latest"
//
// のようなフルパスを設定してください。
func LoadKeyFromSecretManager(ctx context.Context, secretVersion string) ([]byte, error) {
	name := strings.TrimSpace(secretVersion)
	if name == "" {
		return nil, fmt.Errorf("credential: secret version is empty")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("AccessSecretVersion: %w", err)
	}
	if resp == nil || resp.Payload == nil {
		return nil, fmt.Errorf("credential: secret %s has no payload", name)
	}

	key, err := DecodeKey(strings.TrimSpace(string(resp.Payload.Data)))
	if err != nil {
		return nil, err
	}

	// 鍵そのものは出さない。どの secret から読んだかだけ残す。
	log.Printf("[credential] loaded resume token key from Secret Manager: secret=%s", name)
	return key, nil
}

// StoreKeyInSecretManager adds key as a new version of secretName
// ("projects/<PROJECT_ID>/secrets/<SECRET_ID>") and returns the version name.
func StoreKeyInSecretManager(ctx context.Context, secretName string, encodedKey string) (string, error) {
	name := strings.TrimSpace(secretName)
	if name == "" {
		return "", fmt.Errorf("credential: secret name is empty")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	res, err := client.AddSecretVersion(ctx, &secretspb.AddSecretVersionRequest{
		Parent: name,
		Payload: &secretspb.SecretPayload{
			Data: []byte(encodedKey),
		},
	})
	if err != nil {
		return "", fmt.Errorf("AddSecretVersion: %w", err)
	}
	return res.Name, nil
}
