package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer      Role = "CUSTOMER"
	RoleProvider      Role = "PROVIDER"
	RoleCompany       Role = "COMPANY"
	RoleEmployee      Role = "EMPLOYEE"
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
)

// ParseRole accepts a known role name; an empty string is a customer.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case "":
		return RoleCustomer, true
	case RoleCustomer, RoleProvider, RoleCompany, RoleEmployee, RolePlatformAdmin:
		return r, true
	default:
		return "", false
	}
}

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	CompanyID *uuid.UUID
}

func (a Actor) IsCompany() bool {
	return a.Role == RoleCompany
}

// OwnsCompany reports whether the actor acts for the given company.
func (a Actor) OwnsCompany(companyID *uuid.UUID) bool {
	return a.IsCompany() && a.CompanyID != nil && companyID != nil && *a.CompanyID == *companyID
}
