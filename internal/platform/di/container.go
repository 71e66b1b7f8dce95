// internal/platform/di/container.go
package di

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/storage"

	httpin "tokenissuer/internal/adapters/in/http"
	"tokenissuer/internal/adapters/in/http/handler"
	"tokenissuer/internal/adapters/in/http/middleware"
	dbrepo "tokenissuer/internal/adapters/out/db"
	fsrepo "tokenissuer/internal/adapters/out/firestore"
	"tokenissuer/internal/adapters/out/gcs"
	"tokenissuer/internal/adapters/out/mail"
	"tokenissuer/internal/adapters/out/memory"
	issuanceapp "tokenissuer/internal/application/issuance"
	"tokenissuer/internal/domain/issuance"
	appcfg "tokenissuer/internal/infra/config"
	"tokenissuer/internal/infra/credential"
	"tokenissuer/internal/infra/database"
	firebaseinfra "tokenissuer/internal/infra/firebase"
	firestoreinfra "tokenissuer/internal/infra/firestore"
	"tokenissuer/internal/infra/retry"
	solanainfra "tokenissuer/internal/infra/solana"
)

// Container wires every dependency once at boot. Nothing below it is a singleton.
type Container struct {
	Config *appcfg.Config

	IssuanceUC      *issuanceapp.Usecase
	IssuanceHandler *handler.IssuanceHandler
	OperatorAuth    *middleware.OperatorAuth

	closers []func() error
}

// NewContainer builds the container from cfg. Stores and key material are strict
// (return error); logo upload and mail are best-effort (warn + continue).
func NewContainer(ctx context.Context, cfg *appcfg.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("di: config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config: %w", err)
	}

	c := &Container{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	// ----------------------------------------------------------
	// Ledgers（retry デコレータ付き）
	// ----------------------------------------------------------
	retryCfg := retry.Config{
		MaxRetries:   cfg.LedgerRetryMaxRetries,
		InitialDelay: cfg.LedgerRetryInitialDelay,
		MaxDelay:     cfg.LedgerRetryMaxDelay,
	}
	ledgers := map[issuance.Network]issuance.Ledger{}
	for n, url := range map[issuance.Network]string{
		issuance.NetworkDevnet:  cfg.DevnetRPCURL,
		issuance.NetworkMainnet: cfg.MainnetRPCURL,
	} {
		client := solanainfra.NewLedgerClient(solanainfra.LedgerConfig{
			Network:        n,
			RPCURL:         url,
			CallTimeout:    cfg.LedgerCallTimeout,
			ConfirmTimeout: cfg.LedgerConfirmTimeout,
			PollInterval:   cfg.LedgerConfirmPollInterval,
		})
		ledgers[n] = retry.NewLedger(client, retryCfg)
	}

	// ----------------------------------------------------------
	// Attempt store
	// ----------------------------------------------------------
	attempts, err := c.attemptStore(ctx)
	if err != nil {
		return nil, err
	}

	// ----------------------------------------------------------
	// Resume token codec
	// ----------------------------------------------------------
	key, err := resumeTokenKey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	codec, err := credential.NewSealedCodec(key)
	if err != nil {
		return nil, fmt.Errorf("di: resume token codec: %w", err)
	}

	uc := issuanceapp.NewUsecase(ledgers, attempts, codec)

	// ----------------------------------------------------------
	// Reserve recipient
	// ----------------------------------------------------------
	if cfg.UseReserveVault() {
		if cfg.ReserveKeyProject == "" {
			log.Printf("[di] WARN: RESERVE_KEY_PROJECT is empty; reserve keys are kept in memory only")
			uc.SetReserveVault(memory.NewReserveKeyVaultMem())
		} else {
			vault, err := solanainfra.NewReserveKeyVaultSM(ctx, cfg.ReserveKeyProject)
			if err != nil {
				return nil, fmt.Errorf("di: reserve key vault: %w", err)
			}
			c.closers = append(c.closers, vault.Close)
			uc.SetReserveVault(vault)
			log.Printf("[di] reserve keys -> Secret Manager project=%s", cfg.ReserveKeyProject)
		}
	} else if err := uc.SetReserveOwner(cfg.ReserveOwnerAddress); err != nil {
		return nil, fmt.Errorf("di: %w", err)
	}

	// ----------------------------------------------------------
	// Remediation notifier
	// ----------------------------------------------------------
	if cfg.RemediationEmail != "" {
		uc.SetNotifier(mail.NewRemediationMailer(mail.NewSendGridClient(cfg.SendGridAPIKey), cfg.SendGridFrom, cfg.RemediationEmail))
		log.Printf("[di] remediation notifier = sendgrid to=%s", cfg.RemediationEmail)
	} else {
		uc.SetNotifier(mail.LogNotifier{})
	}

	// ----------------------------------------------------------
	// HTTP
	// ----------------------------------------------------------
	h := handler.NewIssuanceHandler(uc)
	if bucket := strings.TrimSpace(cfg.LogoBucket); bucket != "" {
		sc, err := storage.NewClient(ctx)
		if err != nil {
			log.Printf("[di] WARN: storage client init failed, logo upload disabled: %v", err)
		} else {
			c.closers = append(c.closers, sc.Close)
			h.SetLogoStore(gcs.NewLogoUploaderGCS(sc, bucket))
		}
	}

	// 運用者 API の認証（best-effort: 初期化できなければ参照 API は 503）
	var verifier middleware.TokenVerifier
	if cfg.FirebaseProjectID == "" {
		log.Printf("[di] WARN: FIREBASE_PROJECT_ID is empty; operator endpoints are disabled")
	} else if authClient, err := firebaseinfra.NewAuthClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile); err != nil {
		log.Printf("[di] WARN: firebase auth init failed, operator endpoints are disabled: %v", err)
	} else {
		verifier = authClient
	}
	c.OperatorAuth = middleware.NewOperatorAuth(verifier, cfg.OperatorUIDs)

	c.IssuanceUC = uc
	c.IssuanceHandler = h
	ok = true
	return c, nil
}

func (c *Container) attemptStore(ctx context.Context) (issuance.AttemptRepository, error) {
	cfg := c.Config
	switch cfg.AttemptStore {
	case appcfg.StoreFirestore:
		fs, err := firestoreinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("di: %w", err)
		}
		c.closers = append(c.closers, fs.Close)
		log.Printf("[di] attempt store = firestore project=%s", cfg.FirestoreProjectID)
		return fsrepo.NewAttemptRepositoryFS(fs.Client), nil

	case appcfg.StorePostgres:
		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("di: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		log.Printf("[di] attempt store = postgres")
		return dbrepo.NewAttemptRepositoryPG(db.Client), nil

	default:
		log.Printf("[di] attempt store = memory (attempts are lost on restart)")
		return memory.NewAttemptRepositoryMem(), nil
	}
}

// resumeTokenKey resolves the sealing key: RESUME_TOKEN_KEY, then RESUME_TOKEN_KEY_SECRET,
// then an ephemeral key (tokens issued before a restart stop decoding).
func resumeTokenKey(ctx context.Context, cfg *appcfg.Config) ([]byte, error) {
	switch {
	case cfg.ResumeTokenKey != "":
		key, err := credential.DecodeKey(cfg.ResumeTokenKey)
		if err != nil {
			return nil, fmt.Errorf("di: RESUME_TOKEN_KEY: %w", err)
		}
		return key, nil
	case cfg.ResumeTokenKeySecret != "":
		key, err := credential.LoadKeyFromSecretManager(ctx, cfg.ResumeTokenKeySecret)
		if err != nil {
			return nil, fmt.Errorf("di: RESUME_TOKEN_KEY_SECRET: %w", err)
		}
		return key, nil
	default:
		log.Printf("[di] WARN: no resume token key configured; using an ephemeral key")
		return credential.GenerateKey()
	}
}

// RouterDeps returns the handlers for httpin.NewRouter.
func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		Issuance:       c.IssuanceHandler,
		OperatorAuth:   c.OperatorAuth,
		AllowedOrigins: c.Config.CORSAllowedOrigins,
	}
}

// Close releases every owned client (reverse order).
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
