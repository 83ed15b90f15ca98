package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

const bookingColumns = `
	b.id, b.customer_id, b.status, b.scheduled_at, b.address, b.address_id,
	b.customer_notes, b.total_price_cents, b.payment_intent_id, b.client_secret,
	b.cancelled_at, b.created_at, b.updated_at`

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, customer_id, status, scheduled_at, address, address_id,
			customer_notes, total_price_cents, payment_intent_id, client_secret,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	conn := r.conn(ctx)
	_, err := conn.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.Status,
		booking.ScheduledAt,
		booking.Address,
		booking.AddressID,
		booking.CustomerNotes,
		booking.TotalPriceCents,
		booking.PaymentIntentID,
		booking.ClientSecret,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", mapError(err))
	}

	itemQuery := `
		INSERT INTO booking_items (id, booking_id, service_id, quantity, price_cents, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, item := range booking.Items {
		if _, err := conn.ExecContext(ctx, itemQuery,
			item.ID, booking.ID, item.ServiceID, item.Quantity, item.PriceCents, i,
		); err != nil {
			return fmt.Errorf("failed to insert booking item: %w", mapError(err))
		}
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`
	if err := sqlxGet(ctx, r.conn(ctx), &b, query, id); err != nil {
		return nil, err
	}

	bookings := []*model.Booking{&b}
	if err := r.hydrate(ctx, bookings); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1 FOR UPDATE`
	if err := sqlxGet(ctx, r.conn(ctx), &b, query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) GetByPaymentIntentForUpdate(ctx context.Context, intentID string) (*model.Booking, error) {
	var b model.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.payment_intent_id = $1 FOR UPDATE`
	if err := sqlxGet(ctx, r.conn(ctx), &b, query, intentID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := r.conn(ctx).ExecContext(ctx, query,
		booking.Status, booking.CancelledAt, booking.UpdatedAt, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", mapError(err))
	}
	return requireAffected(res)
}

func (r *bookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.customer_id = $1
		ORDER BY b.scheduled_at DESC`
	return r.list(ctx, query, customerID)
}

func (r *bookingRepository) ListAvailable(ctx context.Context) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings b
		LEFT JOIN jobs j ON j.booking_id = b.id
		WHERE j.id IS NULL AND b.status IN ('PENDING', 'CONFIRMED')
		ORDER BY b.scheduled_at ASC`
	return r.list(ctx, query)
}

func (r *bookingRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Booking, error) {
	bookings := []*model.Booking{}
	if err := sqlxSelect(ctx, r.conn(ctx), &bookings, query, args...); err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// hydrate loads items and job summaries for all bookings in two queries.
func (r *bookingRepository) hydrate(ctx context.Context, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	ids := make([]string, 0, len(bookings))
	byID := make(map[uuid.UUID]*model.Booking, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID.String())
		byID[b.ID] = b
		b.Items = []*model.BookingItem{}
	}

	var items []*model.BookingItem
	itemQuery := `
		SELECT i.id, i.booking_id, i.service_id, s.name AS service_name, i.quantity, i.price_cents
		FROM booking_items i
		JOIN services s ON s.id = i.service_id
		WHERE i.booking_id = ANY($1::uuid[])
		ORDER BY i.booking_id, i.position
	`
	if err := sqlxSelect(ctx, r.conn(ctx), &items, itemQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to load booking items: %w", err)
	}
	for _, it := range items {
		if b, ok := byID[it.BookingID]; ok {
			b.Items = append(b.Items, it)
		}
	}

	var jobs []struct {
		BookingID uuid.UUID `db:"booking_id"`
		model.JobSummary
	}
	jobQuery := `
		SELECT booking_id, id, status, provider_id, company_id, assigned_employee_id
		FROM jobs
		WHERE booking_id = ANY($1::uuid[])
	`
	if err := sqlxSelect(ctx, r.conn(ctx), &jobs, jobQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to load booking jobs: %w", err)
	}
	for i := range jobs {
		if b, ok := byID[jobs[i].BookingID]; ok {
			summary := jobs[i].JobSummary
			b.Job = &summary
		}
	}
	return nil
}
