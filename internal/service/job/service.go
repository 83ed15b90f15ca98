package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
	"github.com/cleanly/booking-api/internal/service/event"
	apperrors "github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

// EligibilityChecker gates job pickup.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, userID uuid.UUID) (bool, error)
}

type Deps struct {
	Tx          repository.Transactor
	Jobs        repository.JobRepository
	Bookings    repository.BookingRepository
	Companies   repository.CompanyRepository
	Eligibility EligibilityChecker
	Events      event.Emitter
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

type Service struct {
	tx        repository.Transactor
	jobs      repository.JobRepository
	bookings  repository.BookingRepository
	companies repository.CompanyRepository
	gate      EligibilityChecker
	events    event.Emitter
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Service{
		tx:        d.Tx,
		jobs:      d.Jobs,
		bookings:  d.Bookings,
		companies: d.Companies,
		gate:      d.Eligibility,
		events:    d.Events,
		metrics:   d.Metrics,
		log:       d.Logger,
		now:       time.Now,
	}
}

// PickUp creates a PENDING job for the booking on behalf of the actor. Only
// verified providers may pick up, and a booking gets at most one job.
func (s *Service) PickUp(ctx context.Context, actor model.Actor, bookingID uuid.UUID) (*model.Job, error) {
	job, err := s.pickUp(ctx, actor, bookingID)
	s.metrics.JobPickups.WithLabelValues(pickupResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.log.FromContext(ctx).Info("job picked up",
		"job_id", job.ID.String(),
		"booking_id", bookingID.String(),
		"provider_id", actor.UserID.String(),
	)
	return s.load(ctx, job)
}

func (s *Service) pickUp(ctx context.Context, actor model.Actor, bookingID uuid.UUID) (*model.Job, error) {
	eligible, err := s.gate.IsEligible(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, apperrors.Forbidden("complete verification to pick up jobs")
	}

	var job *model.Job
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetForUpdate(ctx, bookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Booking")
		}
		if err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}

		_, err = s.jobs.GetByBooking(ctx, bookingID)
		if err == nil {
			return apperrors.Conflict("booking already has a job", nil)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check existing job: %w", err)
		}

		if !b.Status.Pickupable() {
			return apperrors.InvalidState("booking cannot be picked up")
		}

		job = &model.Job{
			Base:       model.NewBase(s.now()),
			BookingID:  bookingID,
			ProviderID: actor.UserID,
			Status:     model.JobStatusPending,
		}
		if actor.IsCompany() {
			job.CompanyID = actor.CompanyID
		}

		if err := s.jobs.Create(ctx, job); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Conflict("booking already has a job", err)
			}
			return fmt.Errorf("failed to create job: %w", err)
		}
		return s.events.Emit(ctx, event.AggregateJob, job.ID, model.EventJobCreated, event.NewJobPayload(job, ""))
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func pickupResult(err error) string {
	if err == nil {
		return "created"
	}
	return strings.ToLower(string(apperrors.CodeOf(err)))
}

// Update applies a partial update to a job held by the actor.
func (s *Service) Update(ctx context.Context, actor model.Actor, jobID uuid.UUID, req *model.UpdateJobRequest) (*model.Job, error) {
	var (
		job      *model.Job
		previous model.JobStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		job, err = s.jobs.GetForUpdate(ctx, jobID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Job")
		}
		if err != nil {
			return fmt.Errorf("failed to lock job: %w", err)
		}
		if !canManage(actor, job) {
			return apperrors.Forbidden("access denied")
		}
		previous = job.Status

		next, err := nextStatus(job.Status, req.Status)
		if err != nil {
			return err
		}

		reassigned := false
		if req.AssignedEmployeeID.Set && actor.IsCompany() {
			if err := s.checkEmployee(ctx, job, req.AssignedEmployeeID.Value); err != nil {
				return err
			}
			reassigned = !sameUUID(job.AssignedEmployeeID, req.AssignedEmployeeID.Value)
			job.AssignedEmployeeID = req.AssignedEmployeeID.Value
		}

		completionTouched := next == model.JobStatusCompleted &&
			(previous != model.JobStatusCompleted || req.CompletionNotes != nil || req.CompletionPhotoURLs != nil)
		if next == previous && !reassigned && !completionTouched {
			return nil
		}

		job.Status = next
		job.UpdatedAt = s.now()
		if err := s.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		if completionTouched {
			if err := s.recordCompletion(ctx, job.ID, req); err != nil {
				return err
			}
		}

		eventType := model.EventJobUpdated
		if next == model.JobStatusCompleted && previous != model.JobStatusCompleted {
			eventType = model.EventJobCompleted
		}
		return s.events.Emit(ctx, event.AggregateJob, job.ID, eventType, event.NewJobPayload(job, previous))
	})
	if err != nil {
		return nil, err
	}

	if previous != job.Status {
		s.metrics.JobTransitions.WithLabelValues(string(previous), string(job.Status)).Inc()
		s.log.FromContext(ctx).Info("job status changed",
			"job_id", job.ID.String(),
			"from", string(previous),
			"to", string(job.Status),
		)
	}
	return s.load(ctx, job)
}

// nextStatus validates a requested status against the current one. A nil
// request keeps the current status.
func nextStatus(current model.JobStatus, requested *string) (model.JobStatus, error) {
	if requested == nil {
		return current, nil
	}

	next, known := model.ParseJobStatus(*requested)
	if current == model.JobStatusCompleted && next != model.JobStatusCompleted {
		return "", apperrors.InvalidState("cannot change status from COMPLETED")
	}
	if !known {
		return "", apperrors.Validation("status must be one of PENDING, IN_PROGRESS, COMPLETED, CANCELLED")
	}
	if !current.CanTransitionTo(next) {
		return "", apperrors.InvalidState(fmt.Sprintf("cannot change status from %s to %s", current, next))
	}
	return next, nil
}

func (s *Service) checkEmployee(ctx context.Context, job *model.Job, employeeID *uuid.UUID) error {
	if employeeID == nil {
		return nil
	}
	if job.CompanyID == nil {
		return apperrors.Validation("employee must belong to your company")
	}
	ok, err := s.companies.IsEmployee(ctx, *job.CompanyID, *employeeID)
	if err != nil {
		return fmt.Errorf("failed to check company employee: %w", err)
	}
	if !ok {
		return apperrors.Validation("employee must belong to your company")
	}
	return nil
}

// recordCompletion creates the completion on first entry into COMPLETED and
// afterwards replaces only the fields present in the request.
func (s *Service) recordCompletion(ctx context.Context, jobID uuid.UUID, req *model.UpdateJobRequest) error {
	existing, err := s.jobs.GetCompletion(ctx, jobID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to get job completion: %w", err)
	}

	if existing == nil {
		existing = &model.JobCompletion{
			ID:          uuid.New(),
			JobID:       jobID,
			CompletedAt: s.now(),
			PhotoURLs:   []string{},
		}
	} else if req.CompletionNotes == nil && req.CompletionPhotoURLs == nil {
		return nil
	}

	if req.CompletionNotes != nil {
		existing.Notes = trimmedOrNil(*req.CompletionNotes)
	}
	if req.CompletionPhotoURLs != nil {
		existing.PhotoURLs = nonEmpty(*req.CompletionPhotoURLs)
	}

	if err := s.jobs.UpsertCompletion(ctx, existing); err != nil {
		return fmt.Errorf("failed to save job completion: %w", err)
	}
	return nil
}

// List returns the actor's jobs; a company also sees the jobs of its company.
func (s *Service) List(ctx context.Context, actor model.Actor) ([]*model.Job, error) {
	var companyID *uuid.UUID
	if actor.IsCompany() {
		companyID = actor.CompanyID
	}

	jobs, err := s.jobs.List(ctx, actor.UserID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]*model.Job, 0, len(jobs))
	for _, j := range jobs {
		hydrated, err := s.load(ctx, j)
		if err != nil {
			return nil, err
		}
		out = append(out, hydrated)
	}
	return out, nil
}

// Available returns bookings that still need a provider, soonest first.
func (s *Service) Available(ctx context.Context) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list available bookings: %w", err)
	}
	out := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, providerView(b))
	}
	return out, nil
}

// load attaches booking, completion and review to the job.
func (s *Service) load(ctx context.Context, job *model.Job) (*model.Job, error) {
	b, err := s.bookings.Get(ctx, job.BookingID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if b != nil {
		job.Booking = providerView(b)
	}

	completion, err := s.jobs.GetCompletion(ctx, job.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get job completion: %w", err)
	}
	job.Completion = completion

	review, err := s.jobs.GetReview(ctx, job.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get job review: %w", err)
	}
	job.Review = review
	return job, nil
}

func canManage(actor model.Actor, job *model.Job) bool {
	return job.ProviderID == actor.UserID || actor.OwnsCompany(job.CompanyID)
}

// providerView strips payment details a provider must not see.
func providerView(b *model.Booking) *model.Booking {
	v := *b
	v.PaymentIntentID = nil
	v.ClientSecret = nil
	v.Job = nil
	return &v
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func trimmedOrNil(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	return &t
}

func nonEmpty(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return out
}
