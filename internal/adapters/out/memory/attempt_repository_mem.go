// internal/adapters/out/memory/attempt_repository_mem.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tokenissuer/internal/domain/issuance"
)

// AttemptRepositoryMem keeps attempts in process memory.
// ATTEMPT_STORE=memory（ローカル / テスト用）。再起動で消える。
type AttemptRepositoryMem struct {
	mu    sync.Mutex
	items map[string]issuance.Attempt
}

var _ issuance.AttemptRepository = (*AttemptRepositoryMem)(nil)

func NewAttemptRepositoryMem() *AttemptRepositoryMem {
	return &AttemptRepositoryMem{items: map[string]issuance.Attempt{}}
}

func (r *AttemptRepositoryMem) Create(ctx context.Context, a issuance.Attempt) error {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return issuance.ErrAttemptNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return issuance.ErrAttemptExists
	}
	r.items[id] = a.Clone()
	return nil
}

func (r *AttemptRepositoryMem) GetByID(ctx context.Context, id string) (issuance.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return issuance.Attempt{}, issuance.ErrAttemptNotFound
	}
	return a.Clone(), nil
}

func (r *AttemptRepositoryMem) Claim(ctx context.Context, id string, from, to issuance.Phase, at time.Time) (issuance.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return issuance.Attempt{}, issuance.ErrAttemptNotFound
	}
	if a.Phase != from {
		return a.Clone(), issuance.ErrAttemptAlreadyProcessed
	}
	a.Phase = to
	a.UpdatedAt = at.UTC()
	r.items[a.ID] = a
	return a.Clone(), nil
}

func (r *AttemptRepositoryMem) Save(ctx context.Context, a issuance.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; !ok {
		return issuance.ErrAttemptNotFound
	}
	r.items[a.ID] = a.Clone()
	return nil
}

func (r *AttemptRepositoryMem) ListByPhase(ctx context.Context, phases []issuance.Phase, limit int) ([]issuance.Attempt, error) {
	want := make(map[issuance.Phase]bool, len(phases))
	for _, p := range phases {
		want[p] = true
	}

	r.mu.Lock()
	out := make([]issuance.Attempt, 0)
	for _, a := range r.items {
		if want[a.Phase] {
			out = append(out, a.Clone())
		}
	}
	r.mu.Unlock()

	// 新しい順
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
