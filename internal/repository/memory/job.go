package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type JobRepository struct {
	s *Store
}

var _ repository.JobRepository = (*JobRepository)(nil)

func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.jobs[job.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range r.s.data.jobs {
		if existing.BookingID == job.BookingID {
			return repository.ErrDuplicate
		}
	}
	row := *job
	row.Booking, row.Completion, row.Review = nil, nil, nil
	r.s.data.jobs[job.ID] = row
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.data.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return r.Get(ctx, id)
}

func (r *JobRepository) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, row := range r.s.data.jobs {
		if row.BookingID == bookingID {
			j := row
			return &j, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *JobRepository) Update(ctx context.Context, job *model.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.data.jobs[job.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status = job.Status
	row.AssignedEmployeeID = job.AssignedEmployeeID
	row.UpdatedAt = job.UpdatedAt
	r.s.data.jobs[job.ID] = row
	return nil
}

func (r *JobRepository) List(ctx context.Context, providerID uuid.UUID, companyID *uuid.UUID) ([]*model.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Job
	for _, row := range r.s.data.jobs {
		mine := row.ProviderID == providerID
		ours := companyID != nil && row.CompanyID != nil && *row.CompanyID == *companyID
		if mine || ours {
			j := row
			out = append(out, &j)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *JobRepository) GetCompletion(ctx context.Context, jobID uuid.UUID) (*model.JobCompletion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.data.completions[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.PhotoURLs = append([]string{}, c.PhotoURLs...)
	return &c, nil
}

func (r *JobRepository) UpsertCompletion(ctx context.Context, completion *model.JobCompletion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *completion
	c.PhotoURLs = append([]string{}, completion.PhotoURLs...)
	if existing, ok := r.s.data.completions[c.JobID]; ok {
		c.ID = existing.ID
		c.CompletedAt = existing.CompletedAt
	}
	r.s.data.completions[c.JobID] = c
	return nil
}

func (r *JobRepository) GetReview(ctx context.Context, jobID uuid.UUID) (*model.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rv, ok := r.s.data.reviews[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rv, nil
}
