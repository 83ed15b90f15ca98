package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
	apperrors "github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/logger"
)

// Service decides whether a provider may pick up jobs. Every check reads the
// store, so a status change applies to the very next request.
type Service struct {
	tx       repository.Transactor
	profiles repository.ProviderProfileRepository
	log      *logger.Logger
	now      func() time.Time
}

func NewService(tx repository.Transactor, profiles repository.ProviderProfileRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		tx:       tx,
		profiles: profiles,
		log:      log,
		now:      time.Now,
	}
}

// IsEligible is true only for a VERIFIED profile.
func (s *Service) IsEligible(ctx context.Context, userID uuid.UUID) (bool, error) {
	p, err := s.profiles.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get provider profile: %w", err)
	}
	return p.VerificationStatus == model.VerificationVerified, nil
}

// Profile returns the user's profile, or an unsaved PENDING one if none exists.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error) {
	p, err := s.profiles.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.ProviderProfile{
			UserID:             userID,
			VerificationStatus: model.VerificationPending,
			OfferedServiceIDs:  []string{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider profile: %w", err)
	}
	return p, nil
}

// SetStatus records an admin verification decision, creating the profile if
// needed. A rejection must carry a reason, which is kept as the notes.
func (s *Service) SetStatus(ctx context.Context, userID uuid.UUID, status model.VerificationStatus, reason *string) (*model.ProviderProfile, error) {
	if status != model.VerificationVerified && status != model.VerificationRejected {
		return nil, apperrors.Validation("status must be VERIFIED or REJECTED")
	}

	var notes *string
	if reason != nil {
		if r := strings.TrimSpace(*reason); r != "" {
			notes = &r
		}
	}
	if status == model.VerificationRejected && notes == nil {
		return nil, apperrors.Validation("reason is required when rejecting")
	}

	var saved *model.ProviderProfile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		p, err := s.profiles.GetByUserForUpdate(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			p = &model.ProviderProfile{
				Base:               model.NewBase(now),
				UserID:             userID,
				VerificationStatus: status,
				VerificationNotes:  notes,
				OfferedServiceIDs:  []string{},
			}
			saved = p
			return s.profiles.Create(ctx, p)
		}
		if err != nil {
			return fmt.Errorf("failed to lock provider profile: %w", err)
		}

		p.VerificationStatus = status
		p.VerificationNotes = notes
		p.UpdatedAt = now
		saved = p
		return s.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.log.FromContext(ctx).Info("provider verification updated",
		"user_id", userID.String(),
		"status", string(status),
	)
	return saved, nil
}
