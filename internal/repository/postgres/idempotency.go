package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type idempotencyRepository struct {
	BaseRepository
}

func NewIdempotencyRepository(base BaseRepository) repository.IdempotencyRepository {
	return &idempotencyRepository{base}
}

func (r *idempotencyRepository) FindLive(ctx context.Context, key, resourceType string, now time.Time) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	query := `
		SELECT id, key, resource_type, resource_id, expires_at, created_at
		FROM idempotency_keys
		WHERE key = $1 AND resource_type = $2 AND expires_at > $3
	`
	if err := sqlxGet(ctx, r.conn(ctx), &rec, query, key, resourceType, now); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Bind overwrites an expired row in place; a live row makes the conditional
// update match nothing so no id is returned.
func (r *idempotencyRepository) Bind(ctx context.Context, record *model.IdempotencyRecord, now time.Time) error {
	query := `
		INSERT INTO idempotency_keys (id, key, resource_type, resource_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key, resource_type) DO UPDATE
		SET id = EXCLUDED.id,
			resource_id = EXCLUDED.resource_id,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
		WHERE idempotency_keys.expires_at <= $7
		RETURNING id
	`
	var id string
	err := sqlxGet(ctx, r.conn(ctx), &id, query,
		record.ID,
		record.Key,
		record.ResourceType,
		record.ResourceID,
		record.ExpiresAt,
		record.CreatedAt,
		now,
	)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrDuplicate) {
		return repository.ErrAlreadyBound
	}
	if err != nil {
		return fmt.Errorf("failed to bind idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency keys: %w", err)
	}
	return res.RowsAffected()
}
