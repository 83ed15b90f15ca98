package model

import (
	"strings"

	"github.com/google/uuid"
)

// Address is a saved customer address.
type Address struct {
	Base
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Line1      string    `db:"line1" json:"line1"`
	Line2      *string   `db:"line2" json:"line2,omitempty"`
	City       *string   `db:"city" json:"city,omitempty"`
	PostalCode *string   `db:"postal_code" json:"postal_code,omitempty"`
	Country    *string   `db:"country" json:"country,omitempty"`
}

// Display renders the address as a single line.
func (a *Address) Display() string {
	return JoinAddressParts(a.Line1, a.Line2, a.City, a.PostalCode, a.Country)
}

// JoinAddressParts trims each part and joins the non-empty ones with ", ".
func JoinAddressParts(line1 string, rest ...*string) string {
	parts := make([]string, 0, len(rest)+1)
	if s := strings.TrimSpace(line1); s != "" {
		parts = append(parts, s)
	}
	for _, p := range rest {
		if p == nil {
			continue
		}
		if s := strings.TrimSpace(*p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
