// cmd/keygen/main.go
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"

	"tokenissuer/internal/infra/credential"
)

// keygen prints a fresh RESUME_TOKEN_KEY, or stores it as a new Secret Manager version
// (-secret projects/<p>/secrets/<name>) and prints the version name for RESUME_TOKEN_KEY_SECRET.
func main() {
	secret := flag.String("secret", "", "Secret Manager secret name (projects/<p>/secrets/<name>)")
	flag.Parse()

	key, err := credential.GenerateKey()
	if err != nil {
		log.Fatalf("[keygen] %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)

	if *secret == "" {
		fmt.Printf("RESUME_TOKEN_KEY=%s\n", encoded)
		return
	}

	version, err := credential.StoreKeyInSecretManager(context.Background(), *secret, encoded)
	if err != nil {
		log.Fatalf("[keygen] %v", err)
	}
	fmt.Printf("RESUME_TOKEN_KEY_SECRET=%s\n", version)
}
