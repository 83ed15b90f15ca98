package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

const jobColumns = `
	id, booking_id, provider_id, company_id, assigned_employee_id, status, created_at, updated_at`

type jobRepository struct {
	BaseRepository
}

func NewJobRepository(base BaseRepository) repository.JobRepository {
	return &jobRepository{base}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			id, booking_id, provider_id, company_id, assigned_employee_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		job.ID,
		job.BookingID,
		job.ProviderID,
		job.CompanyID,
		job.AssignedEmployeeID,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", mapError(err))
	}
	return nil
}

func (r *jobRepository) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var j model.Job
	if err := sqlxGet(ctx, r.conn(ctx), &j, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var j model.Job
	if err := sqlxGet(ctx, r.conn(ctx), &j, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepository) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Job, error) {
	var j model.Job
	if err := sqlxGet(ctx, r.conn(ctx), &j, `SELECT `+jobColumns+` FROM jobs WHERE booking_id = $1`, bookingID); err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepository) Update(ctx context.Context, job *model.Job) error {
	query := `
		UPDATE jobs
		SET status = $1, assigned_employee_id = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := r.conn(ctx).ExecContext(ctx, query, job.Status, job.AssignedEmployeeID, job.UpdatedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", mapError(err))
	}
	return requireAffected(res)
}

func (r *jobRepository) List(ctx context.Context, providerID uuid.UUID, companyID *uuid.UUID) ([]*model.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE provider_id = $1 OR ($2::uuid IS NOT NULL AND company_id = $2)
		ORDER BY created_at DESC
	`
	jobs := []*model.Job{}
	if err := sqlxSelect(ctx, r.conn(ctx), &jobs, query, providerID, companyID); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) GetCompletion(ctx context.Context, jobID uuid.UUID) (*model.JobCompletion, error) {
	var c model.JobCompletion
	query := `SELECT id, job_id, completed_at, notes, photo_urls FROM job_completions WHERE job_id = $1`
	if err := sqlxGet(ctx, r.conn(ctx), &c, query, jobID); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCompletion keeps the original completed_at when the row exists.
func (r *jobRepository) UpsertCompletion(ctx context.Context, completion *model.JobCompletion) error {
	query := `
		INSERT INTO job_completions (id, job_id, completed_at, notes, photo_urls)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id) DO UPDATE
		SET notes = EXCLUDED.notes, photo_urls = EXCLUDED.photo_urls
	`
	_, err := r.conn(ctx).ExecContext(ctx, query,
		completion.ID,
		completion.JobID,
		completion.CompletedAt,
		completion.Notes,
		completion.PhotoURLs,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job completion: %w", mapError(err))
	}
	return nil
}

func (r *jobRepository) GetReview(ctx context.Context, jobID uuid.UUID) (*model.Review, error) {
	var rv model.Review
	query := `SELECT id, job_id, rating, comment, created_at FROM reviews WHERE job_id = $1`
	if err := sqlxGet(ctx, r.conn(ctx), &rv, query, jobID); err != nil {
		return nil, err
	}
	return &rv, nil
}
