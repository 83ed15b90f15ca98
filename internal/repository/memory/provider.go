package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type ProviderProfileRepository struct {
	s *Store
}

var _ repository.ProviderProfileRepository = (*ProviderProfileRepository)(nil)

func (r *ProviderProfileRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.data.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *ProviderProfileRepository) GetByUserForUpdate(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error) {
	return r.GetByUser(ctx, userID)
}

func (r *ProviderProfileRepository) Create(ctx context.Context, profile *model.ProviderProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.profiles[profile.UserID]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.profiles[profile.UserID] = *profile
	return nil
}

func (r *ProviderProfileRepository) Update(ctx context.Context, profile *model.ProviderProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.profiles[profile.UserID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.profiles[profile.UserID] = *profile
	return nil
}
