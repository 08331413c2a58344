package models

import "time"

// RegistrationStatus enumerates the officer registration state machine.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationApproved RegistrationStatus = "APPROVED"
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// OfficerRegistration records an officer's request to administer a project.
// At most one row exists per (officer, project) pair; APPROVED rows count
// against the project's officer slots.
type OfficerRegistration struct {
	ID          string             `db:"id" json:"id"`
	OfficerID   string             `db:"officer_id" json:"officer_id"`
	ProjectID   string             `db:"project_id" json:"project_id"`
	Status      RegistrationStatus `db:"status" json:"status"`
	RequestedAt time.Time          `db:"requested_at" json:"requested_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail carries contextual names and the project's application
// window alongside the registration. The window feeds the overlap rule in the
// eligibility evaluator.
type RegistrationDetail struct {
	OfficerRegistration
	OfficerName      string    `db:"officer_name" json:"officer_name"`
	ProjectName      string    `db:"project_name" json:"project_name"`
	ProjectOpenDate  time.Time `db:"project_open_date" json:"project_open_date"`
	ProjectCloseDate time.Time `db:"project_close_date" json:"project_close_date"`
}

// RegistrationFilter captures listing criteria for officer registrations.
type RegistrationFilter struct {
	OfficerID string
	ProjectID string
	Status    RegistrationStatus
	Page      int
	PageSize  int
}
