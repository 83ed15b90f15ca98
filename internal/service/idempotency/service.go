package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

// DefaultTTL is how long a key keeps answering with the resource it created.
const DefaultTTL = 24 * time.Hour

// ErrAlreadyBound means another request bound the key first; re-read with Lookup.
var ErrAlreadyBound = repository.ErrAlreadyBound

// Result of a Lookup. A zero Result is Fresh.
type Result struct {
	Existing   bool
	ResourceID uuid.UUID
}

type Service struct {
	repo repository.IdempotencyRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(repo repository.IdempotencyRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NormalizeKey trims the raw header value; an empty result means no key.
func NormalizeKey(raw string) string {
	return strings.TrimSpace(raw)
}

// Lookup reports whether key already names a live resource. No key is always fresh.
func (s *Service) Lookup(ctx context.Context, key, resourceType string) (Result, error) {
	if key == "" {
		return Result{}, nil
	}

	rec, err := s.repo.FindLive(ctx, key, resourceType, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return Result{Existing: true, ResourceID: rec.ResourceID}, nil
}

// Bind records key -> resourceID. Call it inside the transaction that creates
// the resource; ErrAlreadyBound means that transaction must roll back.
func (s *Service) Bind(ctx context.Context, key, resourceType string, resourceID uuid.UUID) error {
	if key == "" {
		return nil
	}

	now := s.now()
	rec := &model.IdempotencyRecord{
		ID:           uuid.New(),
		Key:          key,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}
	if err := s.repo.Bind(ctx, rec, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyBound) {
			return ErrAlreadyBound
		}
		return fmt.Errorf("failed to bind idempotency key: %w", err)
	}
	return nil
}

// Cleanup deletes records that expired before now. Lookups ignore expired
// records regardless, so this only reclaims space.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency keys: %w", err)
	}
	return n, nil
}
