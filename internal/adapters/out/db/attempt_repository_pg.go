// internal/adapters/out/db/attempt_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lib/pq"

	dbcommon "tokenissuer/internal/adapters/out/db/common"
	"tokenissuer/internal/domain/issuance"
)

// AttemptRepositoryPG implements issuance.AttemptRepository on the issuance_attempts table.
// ATTEMPT_STORE=postgres
type AttemptRepositoryPG struct {
	DB *sql.DB
}

var _ issuance.AttemptRepository = (*AttemptRepositoryPG)(nil)

func NewAttemptRepositoryPG(db *sql.DB) *AttemptRepositoryPG {
	return &AttemptRepositoryPG{DB: db}
}

const attemptColumns = `
  id, network, payer_address, phase, request_fingerprint,
  mint_address, decimals, user_token_account, reserve_token_account,
  user_share, reserve_share, reserve_owner, metadata_address, metadata_tx_id,
  failed_phase, failure_reason, failure_detail,
  created_at, updated_at`

func (r *AttemptRepositoryPG) Create(ctx context.Context, a issuance.Attempt) error {
	run := dbcommon.GetRunner(ctx, r.DB)

	id := strings.TrimSpace(a.ID)
	if id == "" {
		return errors.New("attempt id is empty")
	}

	const q = `
INSERT INTO issuance_attempts (` + attemptColumns + `
) VALUES (
  $1, $2, $3, $4, $5,
  $6, $7, $8, $9,
  $10, $11, $12, $13, $14,
  $15, $16, $17,
  $18, $19
)`
	args := append([]any{id}, attemptArgs(a)...)
	if _, err := run.ExecContext(ctx, q, args...); err != nil {
		if dbcommon.IsUniqueViolation(err) {
			return issuance.ErrAttemptExists
		}
		return fmt.Errorf("insert issuance_attempts: %w", err)
	}
	return nil
}

func (r *AttemptRepositoryPG) GetByID(ctx context.Context, id string) (issuance.Attempt, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	const q = `SELECT` + attemptColumns + `
FROM issuance_attempts
WHERE id = $1
LIMIT 1`
	a, err := scanAttempt(run.QueryRowContext(ctx, q, strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return issuance.Attempt{}, issuance.ErrAttemptNotFound
		}
		return issuance.Attempt{}, err
	}
	return a, nil
}

// Claim は条件付き UPDATE で from → to を 1 回だけ成功させる。
func (r *AttemptRepositoryPG) Claim(ctx context.Context, id string, from, to issuance.Phase, at time.Time) (issuance.Attempt, error) {
	run := dbcommon.GetRunner(ctx, r.DB)
	id = strings.TrimSpace(id)

	const q = `
UPDATE issuance_attempts
SET phase = $3, updated_at = $4
WHERE id = $1 AND phase = $2
RETURNING` + attemptColumns

	a, err := scanAttempt(run.QueryRowContext(ctx, q, id, string(from), string(to), at.UTC()))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return issuance.Attempt{}, err
	}

	// 行が無いか、phase が既に進んでいる
	cur, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return issuance.Attempt{}, gerr
	}
	return cur, issuance.ErrAttemptAlreadyProcessed
}

func (r *AttemptRepositoryPG) Save(ctx context.Context, a issuance.Attempt) error {
	run := dbcommon.GetRunner(ctx, r.DB)

	const q = `
UPDATE issuance_attempts SET
  network = $2, payer_address = $3, phase = $4, request_fingerprint = $5,
  mint_address = $6, decimals = $7, user_token_account = $8, reserve_token_account = $9,
  user_share = $10, reserve_share = $11, reserve_owner = $12, metadata_address = $13, metadata_tx_id = $14,
  failed_phase = $15, failure_reason = $16, failure_detail = $17,
  created_at = $18, updated_at = $19
WHERE id = $1`
	args := append([]any{strings.TrimSpace(a.ID)}, attemptArgs(a)...)
	res, err := run.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update issuance_attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return issuance.ErrAttemptNotFound
	}
	return nil
}

func (r *AttemptRepositoryPG) ListByPhase(ctx context.Context, phases []issuance.Phase, limit int) ([]issuance.Attempt, error) {
	run := dbcommon.GetRunner(ctx, r.DB)
	if len(phases) == 0 {
		return []issuance.Attempt{}, nil
	}

	vals := make([]string, 0, len(phases))
	for _, p := range phases {
		vals = append(vals, string(p))
	}
	if limit <= 0 {
		limit = 1000
	}

	const q = `SELECT` + attemptColumns + `
FROM issuance_attempts
WHERE phase = ANY($1)
ORDER BY updated_at DESC, id ASC
LIMIT $2`
	rows, err := run.QueryContext(ctx, q, pq.Array(vals), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]issuance.Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ========================================
// mapping
// ========================================

// attemptArgs returns $2..$19 (id excluded).
func attemptArgs(a issuance.Attempt) []any {
	var (
		mintAddr, userAcc, reserveAcc, mdAddr, mdTx string
		decimals                                    sql.NullInt16
		userShare, reserveShare                     sql.NullString
	)
	if a.Mint != nil {
		mintAddr = a.Mint.MintAddress
		decimals = sql.NullInt16{Int16: int16(a.Mint.Decimals), Valid: true}
	}
	if d := a.Distribution; d != nil {
		userAcc = d.UserTokenAccount
		reserveAcc = d.ReserveTokenAccount
		userShare = numeric(d.UserShare)
		reserveShare = numeric(d.ReserveShare)
	}
	if a.Metadata != nil {
		mdAddr = a.Metadata.Address
		mdTx = a.Metadata.TxID
	}

	return []any{
		string(a.Network),
		a.PayerAddress,
		string(a.Phase),
		a.RequestFingerprint,
		dbcommon.NullString(mintAddr),
		decimals,
		dbcommon.NullString(userAcc),
		dbcommon.NullString(reserveAcc),
		userShare,
		reserveShare,
		dbcommon.NullString(a.ReserveOwner),
		dbcommon.NullString(mdAddr),
		dbcommon.NullString(mdTx),
		dbcommon.NullString(string(a.FailedPhase)),
		dbcommon.NullString(a.FailureReason),
		dbcommon.NullString(a.FailureDetail),
		a.CreatedAt.UTC(),
		a.UpdatedAt.UTC(),
	}
}

func scanAttempt(s dbcommon.RowScanner) (issuance.Attempt, error) {
	var (
		a                                           issuance.Attempt
		network, phase                              string
		mintAddr, userAcc, reserveAcc, reserveOwner sql.NullString
		userShare, reserveShare, mdAddr, mdTx       sql.NullString
		failedPhase, failureReason, failureDetail   sql.NullString
		decimals                                    sql.NullInt16
	)
	if err := s.Scan(
		&a.ID, &network, &a.PayerAddress, &phase, &a.RequestFingerprint,
		&mintAddr, &decimals, &userAcc, &reserveAcc,
		&userShare, &reserveShare, &reserveOwner, &mdAddr, &mdTx,
		&failedPhase, &failureReason, &failureDetail,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return issuance.Attempt{}, err
	}

	a.Network = issuance.Network(network)
	a.Phase = issuance.Phase(phase)
	a.ReserveOwner = reserveOwner.String
	a.FailedPhase = issuance.Phase(failedPhase.String)
	a.FailureReason = failureReason.String
	a.FailureDetail = failureDetail.String
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()

	if mintAddr.Valid {
		a.Mint = &issuance.MintResult{MintAddress: mintAddr.String, Decimals: uint8(decimals.Int16)}
	}
	if userAcc.Valid || userShare.Valid {
		a.Distribution = &issuance.DistributionResult{
			UserTokenAccount:    userAcc.String,
			ReserveTokenAccount: reserveAcc.String,
			UserShare:           parseNumeric(userShare),
			ReserveShare:        parseNumeric(reserveShare),
		}
	}
	if mdAddr.Valid {
		a.Metadata = &issuance.MetadataAttachment{Address: mdAddr.String, TxID: mdTx.String}
	}
	return a, nil
}

// NUMERIC(40,0) は文字列でやり取りする（uint64 を超える供給量があり得る）
func numeric(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseNumeric(ns sql.NullString) *big.Int {
	if !ns.Valid {
		return nil
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(ns.String), 10)
	if !ok {
		return nil
	}
	return v
}
