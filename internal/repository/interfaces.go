package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyBound is returned when a live idempotency record already holds the key.
	ErrAlreadyBound = errors.New("idempotency key already bound")
)

// Transactor runs fn in a single store transaction. Repositories called with
// the ctx handed to fn join that transaction; nested calls reuse it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	// BookingRepository persists bookings and their item snapshots.
	BookingRepository interface {
		// Create inserts the booking and its items.
		Create(ctx context.Context, booking *model.Booking) error
		// Get returns the booking with items and job summary.
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		// GetForUpdate returns the bare booking row, locked until the transaction ends.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		GetByPaymentIntentForUpdate(ctx context.Context, intentID string) (*model.Booking, error)
		UpdateStatus(ctx context.Context, booking *model.Booking) error
		ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Booking, error)
		// ListAvailable returns PENDING or CONFIRMED bookings without a job, soonest first.
		ListAvailable(ctx context.Context) ([]*model.Booking, error)
	}

	JobRepository interface {
		// Create returns ErrDuplicate when the booking already has a job.
		Create(ctx context.Context, job *model.Job) error
		Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error)
		GetByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Job, error)
		Update(ctx context.Context, job *model.Job) error
		// List returns jobs held by the provider or, when companyID is set, by the company.
		List(ctx context.Context, providerID uuid.UUID, companyID *uuid.UUID) ([]*model.Job, error)
		GetCompletion(ctx context.Context, jobID uuid.UUID) (*model.JobCompletion, error)
		UpsertCompletion(ctx context.Context, completion *model.JobCompletion) error
		GetReview(ctx context.Context, jobID uuid.UUID) (*model.Review, error)
	}

	IdempotencyRepository interface {
		// FindLive returns the record for (key, resourceType) that expires after now.
		FindLive(ctx context.Context, key, resourceType string, now time.Time) (*model.IdempotencyRecord, error)
		// Bind inserts the record, superseding an expired one. A live holder yields ErrAlreadyBound.
		Bind(ctx context.Context, record *model.IdempotencyRecord, now time.Time) error
		DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	}

	ProviderProfileRepository interface {
		GetByUser(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error)
		GetByUserForUpdate(ctx context.Context, userID uuid.UUID) (*model.ProviderProfile, error)
		Create(ctx context.Context, profile *model.ProviderProfile) error
		Update(ctx context.Context, profile *model.ProviderProfile) error
	}

	CompanyRepository interface {
		GetByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Company, error)
		IsEmployee(ctx context.Context, companyID, userID uuid.UUID) (bool, error)
	}

	ServiceRepository interface {
		// ListActiveByIDs returns the active services among ids.
		ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Service, error)
	}

	AddressRepository interface {
		// GetOwned returns ErrNotFound unless the address exists and belongs to userID.
		GetOwned(ctx context.Context, id, userID uuid.UUID) (*model.Address, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock must run inside a transaction; rows stay locked until it ends.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
