package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cleanly/booking-api/internal/model"
)

// Emitter records lifecycle events. Emit joins the caller's transaction so
// the event commits or rolls back with the state change it describes.
type Emitter interface {
	Emit(ctx context.Context, aggregateType string, aggregateID uuid.UUID, eventType string, payload interface{}) error
}

const (
	AggregateBooking = "booking"
	AggregateJob     = "job"
)

// BookingPayload is published for booking.* events.
type BookingPayload struct {
	BookingID       uuid.UUID           `json:"booking_id"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	Status          model.BookingStatus `json:"status"`
	TotalPriceCents int64               `json:"total_price_cents"`
	ScheduledAt     time.Time           `json:"scheduled_at"`
	PaymentIntentID *string             `json:"payment_intent_id,omitempty"`
}

func NewBookingPayload(b *model.Booking) BookingPayload {
	return BookingPayload{
		BookingID:       b.ID,
		CustomerID:      b.CustomerID,
		Status:          b.Status,
		TotalPriceCents: b.TotalPriceCents,
		ScheduledAt:     b.ScheduledAt,
		PaymentIntentID: b.PaymentIntentID,
	}
}

// JobPayload is published for job.* events.
type JobPayload struct {
	JobID              uuid.UUID       `json:"job_id"`
	BookingID          uuid.UUID       `json:"booking_id"`
	ProviderID         uuid.UUID       `json:"provider_id"`
	CompanyID          *uuid.UUID      `json:"company_id,omitempty"`
	AssignedEmployeeID *uuid.UUID      `json:"assigned_employee_id,omitempty"`
	Status             model.JobStatus `json:"status"`
	PreviousStatus     model.JobStatus `json:"previous_status,omitempty"`
}

func NewJobPayload(j *model.Job, previous model.JobStatus) JobPayload {
	return JobPayload{
		JobID:              j.ID,
		BookingID:          j.BookingID,
		ProviderID:         j.ProviderID,
		CompanyID:          j.CompanyID,
		AssignedEmployeeID: j.AssignedEmployeeID,
		Status:             j.Status,
		PreviousStatus:     previous,
	}
}
