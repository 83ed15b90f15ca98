package memory

import (
	"context"
	"time"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type IdempotencyRepository struct {
	s *Store
}

var _ repository.IdempotencyRepository = (*IdempotencyRepository)(nil)

func (r *IdempotencyRepository) FindLive(ctx context.Context, key, resourceType string, now time.Time) (*model.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.data.idempotency[idemKey{key, resourceType}]
	if !ok || !rec.Live(now) {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *IdempotencyRepository) Bind(ctx context.Context, record *model.IdempotencyRecord, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := idemKey{record.Key, record.ResourceType}
	if existing, ok := r.s.data.idempotency[k]; ok && existing.Live(now) {
		return repository.ErrAlreadyBound
	}
	r.s.data.idempotency[k] = *record
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, rec := range r.s.data.idempotency {
		if !rec.ExpiresAt.After(before) {
			delete(r.s.data.idempotency, k)
			n++
		}
	}
	return n, nil
}

// Expire moves a record's expiry into the past; tests use it to age keys.
func (r *IdempotencyRepository) Expire(key, resourceType string, at time.Time) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := idemKey{key, resourceType}
	if rec, ok := r.s.data.idempotency[k]; ok {
		rec.ExpiresAt = at
		r.s.data.idempotency[k] = rec
	}
}
