// cmd/devnet_issue/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"tokenissuer/internal/application/issuance/presenter"
	"tokenissuer/internal/domain/issuance"
	appcfg "tokenissuer/internal/infra/config"
	"tokenissuer/internal/platform/di"
)

// devnet_issue runs one issuance against devnet with the same container as the API.
func main() {
	name := flag.String("name", "Devnet Test", "token name")
	symbol := flag.String("symbol", "DVT", "token symbol")
	uri := flag.String("uri", "https://example.com/metadata.json", "metadata URI")
	supply := flag.String("supply", "1000000000", "total supply (base units)")
	decimals := flag.String("decimals", "9", "decimals")
	recipient := flag.String("recipient", "", "recipient wallet (70% share)")
	flag.Parse()

	if *recipient == "" {
		log.Fatalf("[devnet-issue] -recipient is required")
	}

	ctx := context.Background()
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("[devnet-issue] config: %v", err)
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer container.Close()

	out, err := container.IssuanceUC.Start(ctx, issuance.RequestInput{
		Network:     string(issuance.NetworkDevnet),
		Name:        *name,
		Symbol:      *symbol,
		MetadataURI: *uri,
		TotalSupply: *supply,
		Decimals:    *decimals,
		Recipient:   *recipient,
	})
	if err != nil {
		_, view := presenter.PresentError(err)
		log.Fatalf("[devnet-issue] %s: %s", view.Code, view.Error)
	}

	_, view := presenter.PresentOutcome(out)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(view)
	if out.Failure != nil {
		os.Exit(1)
	}
}
