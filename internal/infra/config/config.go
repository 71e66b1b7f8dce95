// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AttemptStore の選択肢
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// Solana RPC（空なら公開エンドポイント）
	DevnetRPCURL  string `env:"SOLANA_DEVNET_RPC_URL"`
	MainnetRPCURL string `env:"SOLANA_MAINNET_RPC_URL"`

	LedgerCallTimeout         time.Duration `env:"LEDGER_CALL_TIMEOUT"          envDefault:"20s"`
	LedgerConfirmTimeout      time.Duration `env:"LEDGER_CONFIRM_TIMEOUT"       envDefault:"60s"`
	LedgerConfirmPollInterval time.Duration `env:"LEDGER_CONFIRM_POLL_INTERVAL" envDefault:"1500ms"`

	LedgerRetryMaxRetries   uint64        `env:"LEDGER_RETRY_MAX_RETRIES"   envDefault:"4"`
	LedgerRetryInitialDelay time.Duration `env:"LEDGER_RETRY_INITIAL_DELAY" envDefault:"500ms"`
	LedgerRetryMaxDelay     time.Duration `env:"LEDGER_RETRY_MAX_DELAY"     envDefault:"8s"`

	// resume token 封緘鍵: base64 の直値か Secret Manager の version 名のどちらか
	ResumeTokenKey       string `env:"RESUME_TOKEN_KEY"`
	ResumeTokenKeySecret string `env:"RESUME_TOKEN_KEY_SECRET"`

	AttemptStore string `env:"ATTEMPT_STORE" envDefault:"memory"`

	GCPProjectID             string `env:"GCP_PROJECT_ID"`
	FirestoreProjectID       string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile string `env:"FIRESTORE_CREDENTIALS_FILE"`
	DatabaseURL              string `env:"DATABASE_URL"`

	// ロゴ画像のアップロード先（空ならアップロード無効）
	LogoBucket string `env:"LOGO_BUCKET"`

	// reserve 受取先。空なら attempt ごとに鍵を生成して Secret Manager に保管する
	ReserveOwnerAddress string `env:"RESERVE_OWNER_ADDRESS"`
	ReserveKeyProject   string `env:"RESERVE_KEY_PROJECT"`

	SendGridAPIKey   string `env:"SENDGRID_API_KEY"`
	SendGridFrom     string `env:"SENDGRID_FROM"      envDefault:"noreply@tokenissuer.local"`
	RemediationEmail string `env:"REMEDIATION_EMAIL"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// 運用者 API（remediation / attempt 参照）の Firebase ID トークン検証
	FirebaseProjectID       string   `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string   `env:"FIREBASE_CREDENTIALS_FILE"`
	OperatorUIDs            []string `env:"OPERATOR_UIDS" envSeparator:","`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.AttemptStore = strings.ToLower(strings.TrimSpace(c.AttemptStore))
	if c.FirestoreProjectID == "" {
		c.FirestoreProjectID = c.GCPProjectID
	}
	if c.ReserveKeyProject == "" {
		c.ReserveKeyProject = c.GCPProjectID
	}
	if c.FirebaseProjectID == "" {
		c.FirebaseProjectID = c.GCPProjectID
	}
	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins

	uids := c.OperatorUIDs[:0]
	for _, u := range c.OperatorUIDs {
		if u = strings.TrimSpace(u); u != "" {
			uids = append(uids, u)
		}
	}
	c.OperatorUIDs = uids
}

// Validate rejects combinations the DI container cannot build.
func (c *Config) Validate() error {
	var errs []error

	switch c.AttemptStore {
	case StoreMemory:
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			errs = append(errs, errors.New("ATTEMPT_STORE=firestore requires FIRESTORE_PROJECT_ID or GCP_PROJECT_ID"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("ATTEMPT_STORE=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("ATTEMPT_STORE=%q is not one of memory, firestore, postgres", c.AttemptStore))
	}

	if c.ResumeTokenKey != "" && c.ResumeTokenKeySecret != "" {
		errs = append(errs, errors.New("set only one of RESUME_TOKEN_KEY and RESUME_TOKEN_KEY_SECRET"))
	}
	// 鍵が再起動を越えて残るなら attempt 記録も残らなければならない（発行済み token の再実行防止）
	if c.AttemptStore == StoreMemory && (c.ResumeTokenKey != "" || c.ResumeTokenKeySecret != "") {
		errs = append(errs, errors.New("a persistent RESUME_TOKEN_KEY requires ATTEMPT_STORE=firestore or postgres"))
	}
	if c.RemediationEmail != "" && c.SendGridAPIKey == "" {
		errs = append(errs, errors.New("REMEDIATION_EMAIL requires SENDGRID_API_KEY"))
	}
	if c.LedgerCallTimeout <= 0 || c.LedgerConfirmTimeout <= 0 {
		errs = append(errs, errors.New("ledger timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// UseReserveVault reports whether reserve keys are generated per attempt.
func (c *Config) UseReserveVault() bool {
	return strings.TrimSpace(c.ReserveOwnerAddress) == ""
}
