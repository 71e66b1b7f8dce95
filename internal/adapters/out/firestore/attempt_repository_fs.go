// internal/adapters/out/firestore/attempt_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tokenissuer/internal/domain/issuance"
)

const attemptsCollection = "issuance_attempts"

// AttemptRepositoryFS implements issuance.AttemptRepository using Firestore.
// ATTEMPT_STORE=firestore
type AttemptRepositoryFS struct {
	Client *firestore.Client
}

var _ issuance.AttemptRepository = (*AttemptRepositoryFS)(nil)

func NewAttemptRepositoryFS(client *firestore.Client) *AttemptRepositoryFS {
	return &AttemptRepositoryFS{Client: client}
}

// attemptDoc は Firestore 上の 1 ドキュメント。big.Int は 10 進文字列で保存する。
type attemptDoc struct {
	Network            string `firestore:"network"`
	PayerAddress       string `firestore:"payerAddress"`
	Phase              string `firestore:"phase"`
	RequestFingerprint []byte `firestore:"requestFingerprint"`

	MintAddress         string `firestore:"mintAddress,omitempty"`
	Decimals            *int64 `firestore:"decimals,omitempty"`
	UserTokenAccount    string `firestore:"userTokenAccount,omitempty"`
	ReserveTokenAccount string `firestore:"reserveTokenAccount,omitempty"`
	UserShare           string `firestore:"userShare,omitempty"`
	ReserveShare        string `firestore:"reserveShare,omitempty"`
	ReserveOwner        string `firestore:"reserveOwner,omitempty"`
	MetadataAddress     string `firestore:"metadataAddress,omitempty"`
	MetadataTxID        string `firestore:"metadataTxId,omitempty"`

	FailedPhase   string `firestore:"failedPhase,omitempty"`
	FailureReason string `firestore:"failureReason,omitempty"`
	FailureDetail string `firestore:"failureDetail,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (r *AttemptRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection(attemptsCollection)
}

func (r *AttemptRepositoryFS) Create(ctx context.Context, a issuance.Attempt) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return errors.New("attempt id is empty")
	}

	if _, err := r.col().Doc(id).Create(ctx, toAttemptDoc(a)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return issuance.ErrAttemptExists
		}
		return err
	}
	return nil
}

func (r *AttemptRepositoryFS) GetByID(ctx context.Context, id string) (issuance.Attempt, error) {
	if r.Client == nil {
		return issuance.Attempt{}, errors.New("firestore client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return issuance.Attempt{}, issuance.ErrAttemptNotFound
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return issuance.Attempt{}, issuance.ErrAttemptNotFound
		}
		return issuance.Attempt{}, err
	}
	return decodeAttempt(snap)
}

// Claim は from → to の遷移をトランザクション内で 1 回だけ成功させる。
func (r *AttemptRepositoryFS) Claim(ctx context.Context, id string, from, to issuance.Phase, at time.Time) (issuance.Attempt, error) {
	if r.Client == nil {
		return issuance.Attempt{}, errors.New("firestore client is nil")
	}
	ref := r.col().Doc(strings.TrimSpace(id))

	var out issuance.Attempt
	var conflict bool
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		conflict = false
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return issuance.ErrAttemptNotFound
			}
			return err
		}
		a, err := decodeAttempt(snap)
		if err != nil {
			return err
		}
		if a.Phase != from {
			out = a
			conflict = true
			return nil
		}

		a.Phase = to
		a.UpdatedAt = at.UTC()
		out = a
		return tx.Update(ref, []firestore.Update{
			{Path: "phase", Value: string(to)},
			{Path: "updatedAt", Value: a.UpdatedAt},
		})
	})
	if err != nil {
		return issuance.Attempt{}, err
	}
	if conflict {
		return out, issuance.ErrAttemptAlreadyProcessed
	}
	return out, nil
}

func (r *AttemptRepositoryFS) Save(ctx context.Context, a issuance.Attempt) error {
	if r.Client == nil {
		return errors.New("firestore client is nil")
	}
	ref := r.col().Doc(strings.TrimSpace(a.ID))

	// 存在しないドキュメントは作らない
	return r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return issuance.ErrAttemptNotFound
			}
			return err
		}
		return tx.Set(ref, toAttemptDoc(a))
	})
}

func (r *AttemptRepositoryFS) ListByPhase(ctx context.Context, phases []issuance.Phase, limit int) ([]issuance.Attempt, error) {
	if r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}
	if len(phases) == 0 {
		return []issuance.Attempt{}, nil
	}

	vals := make([]string, 0, len(phases))
	for _, p := range phases {
		vals = append(vals, string(p))
	}

	q := r.col().Where("phase", "in", vals).OrderBy("updatedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	out := make([]issuance.Attempt, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		a, err := decodeAttempt(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ------------------------------------------------------
// mapping
// ------------------------------------------------------

func toAttemptDoc(a issuance.Attempt) attemptDoc {
	d := attemptDoc{
		Network:            string(a.Network),
		PayerAddress:       a.PayerAddress,
		Phase:              string(a.Phase),
		RequestFingerprint: a.RequestFingerprint,
		ReserveOwner:       a.ReserveOwner,
		FailedPhase:        string(a.FailedPhase),
		FailureReason:      a.FailureReason,
		FailureDetail:      a.FailureDetail,
		CreatedAt:          a.CreatedAt.UTC(),
		UpdatedAt:          a.UpdatedAt.UTC(),
	}
	if a.Mint != nil {
		dec := int64(a.Mint.Decimals)
		d.MintAddress = a.Mint.MintAddress
		d.Decimals = &dec
	}
	if dist := a.Distribution; dist != nil {
		d.UserTokenAccount = dist.UserTokenAccount
		d.ReserveTokenAccount = dist.ReserveTokenAccount
		d.UserShare = intString(dist.UserShare)
		d.ReserveShare = intString(dist.ReserveShare)
	}
	if a.Metadata != nil {
		d.MetadataAddress = a.Metadata.Address
		d.MetadataTxID = a.Metadata.TxID
	}
	return d
}

func decodeAttempt(snap *firestore.DocumentSnapshot) (issuance.Attempt, error) {
	if snap == nil || !snap.Exists() {
		return issuance.Attempt{}, issuance.ErrAttemptNotFound
	}
	var d attemptDoc
	if err := snap.DataTo(&d); err != nil {
		return issuance.Attempt{}, err
	}
	return fromAttemptDoc(snap.Ref.ID, d), nil
}

func fromAttemptDoc(id string, d attemptDoc) issuance.Attempt {
	a := issuance.Attempt{
		ID:                 id,
		Network:            issuance.Network(d.Network),
		PayerAddress:       d.PayerAddress,
		Phase:              issuance.Phase(d.Phase),
		RequestFingerprint: d.RequestFingerprint,
		ReserveOwner:       d.ReserveOwner,
		FailedPhase:        issuance.Phase(d.FailedPhase),
		FailureReason:      d.FailureReason,
		FailureDetail:      d.FailureDetail,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
	if d.MintAddress != "" {
		var dec uint8
		if d.Decimals != nil {
			dec = uint8(*d.Decimals)
		}
		a.Mint = &issuance.MintResult{MintAddress: d.MintAddress, Decimals: dec}
	}
	if d.UserShare != "" || d.UserTokenAccount != "" {
		a.Distribution = &issuance.DistributionResult{
			UserTokenAccount:    d.UserTokenAccount,
			ReserveTokenAccount: d.ReserveTokenAccount,
			UserShare:           parseInt(d.UserShare),
			ReserveShare:        parseInt(d.ReserveShare),
		}
	}
	if d.MetadataAddress != "" {
		a.Metadata = &issuance.MetadataAttachment{Address: d.MetadataAddress, TxID: d.MetadataTxID}
	}
	return a
}

func intString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func parseInt(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}
