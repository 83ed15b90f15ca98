package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
}

// ParseJobStatus returns false for anything outside the four known values.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch st := JobStatus(s); st {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Terminal statuses accept no further status change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// CanTransitionTo reports whether s may move to next. Staying put is always allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Job struct {
	Base
	BookingID          uuid.UUID  `db:"booking_id" json:"booking_id"`
	ProviderID         uuid.UUID  `db:"provider_id" json:"provider_id"`
	CompanyID          *uuid.UUID `db:"company_id" json:"company_id"`
	AssignedEmployeeID *uuid.UUID `db:"assigned_employee_id" json:"assigned_employee_id"`
	Status             JobStatus  `db:"status" json:"status"`

	Booking    *Booking       `db:"-" json:"booking"`
	Completion *JobCompletion `db:"-" json:"completion"`
	Review     *Review        `db:"-" json:"review"`
}

type JobCompletion struct {
	ID          uuid.UUID      `db:"id" json:"-"`
	JobID       uuid.UUID      `db:"job_id" json:"-"`
	CompletedAt time.Time      `db:"completed_at" json:"completed_at"`
	Notes       *string        `db:"notes" json:"notes"`
	PhotoURLs   pq.StringArray `db:"photo_urls" json:"photo_urls"`
}

type Review struct {
	ID        uuid.UUID `db:"id" json:"-"`
	JobID     uuid.UUID `db:"job_id" json:"-"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   *string   `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type PickUpJobRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

// UpdateJobRequest is a partial job update. Nil pointers leave the field alone.
type UpdateJobRequest struct {
	Status              *string      `json:"status"`
	AssignedEmployeeID  OptionalUUID `json:"assigned_employee_id"`
	CompletionNotes     *string      `json:"completion_notes"`
	CompletionPhotoURLs *[]string    `json:"completion_photo_urls"`
}

// OptionalUUID distinguishes an absent field from an explicit null.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		o.Value = nil
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	o.Value = &id
	return nil
}

func (o OptionalUUID) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value.String())
}
