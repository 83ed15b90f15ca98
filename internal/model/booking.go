package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Pickupable reports whether a provider may still take the booking.
func (s BookingStatus) Pickupable() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	Base
	CustomerID      uuid.UUID     `db:"customer_id" json:"customer_id"`
	Status          BookingStatus `db:"status" json:"status"`
	ScheduledAt     time.Time     `db:"scheduled_at" json:"scheduled_at"`
	Address         string        `db:"address" json:"address"`
	AddressID       *uuid.UUID    `db:"address_id" json:"address_id"`
	CustomerNotes   *string       `db:"customer_notes" json:"customer_notes"`
	TotalPriceCents int64         `db:"total_price_cents" json:"total_price_cents"`
	PaymentIntentID *string       `db:"payment_intent_id" json:"payment_intent_id"`
	ClientSecret    *string       `db:"client_secret" json:"client_secret,omitempty"`
	CancelledAt     *time.Time    `db:"cancelled_at" json:"cancelled_at"`

	Items []*BookingItem `db:"-" json:"items"`
	Job   *JobSummary    `db:"-" json:"job"`
}

// BookingItem snapshots the price of a service at booking time.
type BookingItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	BookingID   uuid.UUID `db:"booking_id" json:"-"`
	ServiceID   uuid.UUID `db:"service_id" json:"service_id"`
	ServiceName string    `db:"service_name" json:"service_name"`
	Quantity    int       `db:"quantity" json:"quantity"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
}

// JobSummary is the job view embedded in a booking.
type JobSummary struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Status             JobStatus  `db:"status" json:"status"`
	ProviderID         uuid.UUID  `db:"provider_id" json:"provider_id"`
	CompanyID          *uuid.UUID `db:"company_id" json:"company_id"`
	AssignedEmployeeID *uuid.UUID `db:"assigned_employee_id" json:"assigned_employee_id"`
}

// CreateBookingRequest is the booking creation payload. Address resolution
// prefers AddressID, then the discrete lines, then the free text Address.
type CreateBookingRequest struct {
	ScheduledAt   string               `json:"scheduled_at" binding:"required"`
	AddressID     *uuid.UUID           `json:"address_id"`
	AddressLine1  *string              `json:"address_line1"`
	AddressLine2  *string              `json:"address_line2"`
	City          *string              `json:"city"`
	PostalCode    *string              `json:"postal_code"`
	Country       *string              `json:"country"`
	Address       *string              `json:"address"`
	CustomerNotes *string              `json:"customer_notes"`
	Items         []BookingItemRequest `json:"items" binding:"required,min=1,dive"`
}

// MaxItemQuantity bounds a single line item. Quantities below 1 count as 1.
const MaxItemQuantity = 1000

type BookingItemRequest struct {
	ServiceID uuid.UUID `json:"service_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"max=1000"`
}
