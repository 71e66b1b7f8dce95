// internal/domain/issuance/repository_port.go
package issuance

import (
	"context"
	"time"
)

// ------------------------------------------------------
// Repository Port for Attempt (issuance_attempts)
// ------------------------------------------------------
//
// 再開時の二重ミント防止のための終端マーカーを保持する。
// 鍵素材は保存しない。

type AttemptRepository interface {
	// Create fails with ErrAttemptExists when the id is taken.
	Create(ctx context.Context, a Attempt) error

	// GetByID returns ErrAttemptNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (Attempt, error)

	// Claim moves the attempt from -> to atomically. If the stored phase is not from it
	// returns ErrAttemptAlreadyProcessed together with the stored record.
	Claim(ctx context.Context, id string, from, to Phase, at time.Time) (Attempt, error)

	// Save overwrites the record (artifacts, phase, failure).
	Save(ctx context.Context, a Attempt) error

	// ListByPhase returns the newest attempts in any of phases.
	ListByPhase(ctx context.Context, phases []Phase, limit int) ([]Attempt, error)
}

// AttemptsTableDDL defines the SQL for the issuance_attempts migration.
const AttemptsTableDDL = `
-- Migration: issuance attempts (terminal markers for resumable issuance)

BEGIN;

CREATE TABLE IF NOT EXISTS issuance_attempts (
  id                    TEXT        PRIMARY KEY,
  network               TEXT        NOT NULL,
  payer_address         TEXT        NOT NULL,
  phase                 TEXT        NOT NULL,
  request_fingerprint   BYTEA       NOT NULL,

  mint_address          TEXT,
  decimals              SMALLINT,
  user_token_account    TEXT,
  reserve_token_account TEXT,
  user_share            NUMERIC(40,0),
  reserve_share         NUMERIC(40,0),
  reserve_owner         TEXT,
  metadata_address      TEXT,
  metadata_tx_id        TEXT,

  failed_phase          TEXT,
  failure_reason        TEXT,
  failure_detail        TEXT,

  created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),

  CONSTRAINT chk_issuance_attempts_phase CHECK (phase IN (
    'awaiting_funds','minting','distributing','attaching_metadata','completed','failed'
  )),
  CONSTRAINT chk_issuance_attempts_network CHECK (network IN ('devnet','mainnet-beta'))
);

CREATE INDEX IF NOT EXISTS idx_issuance_attempts_phase      ON issuance_attempts(phase);
CREATE INDEX IF NOT EXISTS idx_issuance_attempts_updated_at ON issuance_attempts(updated_at);

COMMIT;
`
