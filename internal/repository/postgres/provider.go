package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

const profileColumns = `
	id, user_id, verification_status, verification_notes, offered_service_ids, created_at, updated_at`

type providerProfileRepository struct {
	BaseRepository
}

func NewProviderProfileRepository(base BaseRepository) repository.ProviderProfileRepository {
	return &providerProfileRepository{base}
}

func (r *providerProfileRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error) {
	var p model.ProviderProfile
	query := `SELECT ` + profileColumns + ` FROM provider_profiles WHERE user_id = $1`
	if err := sqlxGet(ctx, r.conn(ctx), &p, query, userID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerProfileRepository) GetByUserForUpdate(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error) {
	var p model.ProviderProfile
	query := `SELECT ` + profileColumns + ` FROM provider_profiles WHERE user_id = $1 FOR UPDATE`
	if err := sqlxGet(ctx, r.conn(ctx), &p, query, userID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerProfileRepository) Create(ctx context.Context, profile *model.ProviderProfile) error {
	query := `
		INSERT INTO provider_profiles (
			id, user_id, verification_status, verification_notes, offered_service_ids, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		profile.VerificationStatus,
		profile.VerificationNotes,
		profile.OfferedServiceIDs,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert provider profile: %w", mapError(err))
	}
	return nil
}

func (r *providerProfileRepository) Update(ctx context.Context, profile *model.ProviderProfile) error {
	query := `
		UPDATE provider_profiles
		SET verification_status = $1, verification_notes = $2, updated_at = $3
		WHERE user_id = $4
	`
	res, err := r.conn(ctx).ExecContext(ctx, query,
		profile.VerificationStatus, profile.VerificationNotes, profile.UpdatedAt, profile.UserID)
	if err != nil {
		return fmt.Errorf("failed to update provider profile: %w", mapError(err))
	}
	return requireAffected(res)
}
