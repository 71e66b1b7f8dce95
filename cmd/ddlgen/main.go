// cmd/ddlgen/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"tokenissuer/internal/domain/issuance"
	"tokenissuer/internal/infra/database"
)

func main() {
	out := flag.String("out", filepath.Join("internal", "infra", "database", "migrations", "init_issuance_attempts.sql"), "output file")
	apply := flag.Bool("apply", false, "apply the DDL to DATABASE_URL instead of writing a file")
	flag.Parse()

	if *apply {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatalf("[ddlgen] DATABASE_URL is empty")
		}
		ctx := context.Background()
		db, err := database.NewConnection(ctx, dsn)
		if err != nil {
			log.Fatalf("[ddlgen] %v", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx, issuance.AttemptsTableDDL); err != nil {
			log.Fatalf("[ddlgen] %v", err)
		}
		log.Printf("[ddlgen] applied issuance_attempts DDL")
		return
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("[ddlgen] %v", err)
	}
	if err := os.WriteFile(*out, []byte(issuance.AttemptsTableDDL), 0o644); err != nil {
		log.Fatalf("[ddlgen] %v", err)
	}
	log.Printf("[ddlgen] wrote %s", *out)
}
