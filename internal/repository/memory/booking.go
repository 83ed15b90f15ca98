package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type BookingRepository struct {
	s *Store
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.bookings[booking.ID]; ok {
		return repository.ErrDuplicate
	}
	row := *booking
	row.Items = nil
	row.Job = nil
	r.s.data.bookings[booking.ID] = row

	items := make([]model.BookingItem, 0, len(booking.Items))
	for _, it := range booking.Items {
		items = append(items, *it)
	}
	r.s.data.items[booking.ID] = items
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.data.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.hydrate(row), nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.data.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (r *BookingRepository) GetByPaymentIntentForUpdate(ctx context.Context, intentID string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, row := range r.s.data.bookings {
		if row.PaymentIntentID != nil && *row.PaymentIntentID == intentID {
			b := row
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.data.bookings[booking.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status = booking.Status
	row.CancelledAt = booking.CancelledAt
	row.UpdatedAt = booking.UpdatedAt
	r.s.data.bookings[booking.ID] = row
	return nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Booking
	for _, row := range r.s.data.bookings {
		if row.CustomerID == customerID {
			out = append(out, r.hydrate(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledAt.After(out[j].ScheduledAt)
	})
	return out, nil
}

func (r *BookingRepository) ListAvailable(ctx context.Context) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	taken := make(map[uuid.UUID]bool, len(r.s.data.jobs))
	for _, j := range r.s.data.jobs {
		taken[j.BookingID] = true
	}

	var out []*model.Booking
	for _, row := range r.s.data.bookings {
		if row.Status.Pickupable() && !taken[row.ID] {
			out = append(out, r.hydrate(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

// hydrate must be called with mu held.
func (r *BookingRepository) hydrate(row model.Booking) *model.Booking {
	b := row
	b.Items = make([]*model.BookingItem, 0, len(r.s.data.items[row.ID]))
	for _, it := range r.s.data.items[row.ID] {
		item := it
		if svc, ok := r.s.data.services[it.ServiceID]; ok {
			item.ServiceName = svc.Name
		}
		b.Items = append(b.Items, &item)
	}
	for _, j := range r.s.data.jobs {
		if j.BookingID == row.ID {
			b.Job = &model.JobSummary{
				ID:                 j.ID,
				Status:             j.Status,
				ProviderID:         j.ProviderID,
				CompanyID:          j.CompanyID,
				AssignedEmployeeID: j.AssignedEmployeeID,
			}
			break
		}
	}
	return &b
}
