package model

import (
	"github.com/google/uuid"
)

type Company struct {
	Base
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`
	Name    string    `db:"name" json:"name"`
}

type CompanyEmployee struct {
	Base
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"`
}
