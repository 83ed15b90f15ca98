package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type OutboxRepository struct {
	s *Store
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.data.outbox = append(r.s.data.outbox, *event)
	return nil
}

func (r *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	var out []*model.OutboxEvent
	for _, e := range r.s.data.outbox {
		if len(out) >= limit {
			break
		}
		due := e.RetryAt == nil || !e.RetryAt.After(now)
		if (e.Status == model.OutboxStatusPending || e.Status == model.OutboxStatusRetry) && due {
			evt := e
			out = append(out, &evt)
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errorMessage
		e.RetryCount++
		e.RetryAt = &retryAt
	})
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errorMessage
	})
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.data.outbox[:0]
	var n int64
	for _, e := range r.s.data.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.data.outbox = kept
	return n, nil
}

func (r *OutboxRepository) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.data.outbox {
		if r.s.data.outbox[i].ID == id {
			fn(&r.s.data.outbox[i])
			r.s.data.outbox[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}
