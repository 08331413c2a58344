package models

import "time"

// ApplicationStatus enumerates the application state machine.
type ApplicationStatus string

const (
	ApplicationPending      ApplicationStatus = "PENDING"
	ApplicationSuccessful   ApplicationStatus = "SUCCESSFUL"
	ApplicationBooked       ApplicationStatus = "BOOKED"
	ApplicationUnsuccessful ApplicationStatus = "UNSUCCESSFUL"
)

// Terminal reports whether the status permits no further transitions other
// than a manager-approved withdrawal of a booked application.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationUnsuccessful
}

// Active reports whether the status counts against the one-active-application
// rule for an applicant.
func (s ApplicationStatus) Active() bool {
	return s == ApplicationPending || s == ApplicationSuccessful || s == ApplicationBooked
}

// Application represents a flat application stored in the applications table.
// Rows are never deleted; UNSUCCESSFUL is final.
type Application struct {
	ID                    string            `db:"id" json:"id"`
	ApplicantID           string            `db:"applicant_id" json:"applicant_id"`
	ProjectID             string            `db:"project_id" json:"project_id"`
	PreferredType         UnitType          `db:"preferred_type" json:"preferred_type"`
	Status                ApplicationStatus `db:"status" json:"status"`
	SubmittedAt           time.Time         `db:"submitted_at" json:"submitted_at"`
	WithdrawalRequestedAt *time.Time        `db:"withdrawal_requested_at" json:"withdrawal_requested_at,omitempty"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail carries contextual names alongside the application.
type ApplicationDetail struct {
	Application
	ApplicantName string `db:"applicant_name" json:"applicant_name"`
	ApplicantNRIC string `db:"applicant_nric" json:"applicant_nric"`
	ProjectName   string `db:"project_name" json:"project_name"`
}

// ApplicationFilter captures listing criteria for applications.
type ApplicationFilter struct {
	ApplicantID string
	ProjectID   string
	Status      ApplicationStatus
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
