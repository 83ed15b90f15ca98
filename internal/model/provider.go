package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

type ProviderProfile struct {
	Base
	UserID             uuid.UUID          `db:"user_id" json:"user_id"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	VerificationNotes  *string            `db:"verification_notes" json:"verification_notes"`
	OfferedServiceIDs  pq.StringArray     `db:"offered_service_ids" json:"offered_service_ids"`
}

type VerifyProviderRequest struct {
	Status string  `json:"status" binding:"required"`
	Reason *string `json:"reason"`
}

type EligibilityResponse struct {
	Eligible           bool               `json:"eligible"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}
