package model

import (
	"time"

	"github.com/google/uuid"
)

const ResourceTypeBooking = "booking"

// IdempotencyRecord binds a client key to the resource it created.
type IdempotencyRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Key          string    `db:"key" json:"key"`
	ResourceType string    `db:"resource_type" json:"resource_type"`
	ResourceID   uuid.UUID `db:"resource_id" json:"resource_id"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Live reports whether the record still answers lookups at now.
func (r *IdempotencyRecord) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}
