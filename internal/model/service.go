package model

import (
	"github.com/google/uuid"
)

// Service is a catalog entry customers can book.
type Service struct {
	Base
	Name           string  `db:"name" json:"name"`
	Description    *string `db:"description" json:"description,omitempty"`
	BasePriceCents int64   `db:"base_price_cents" json:"base_price_cents"`
	Active         bool    `db:"active" json:"active"`
}

// ServiceIndex keys services by id.
type ServiceIndex map[uuid.UUID]*Service

func IndexServices(services []*Service) ServiceIndex {
	idx := make(ServiceIndex, len(services))
	for _, s := range services {
		idx[s.ID] = s
	}
	return idx
}
