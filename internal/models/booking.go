package models

import "time"

// Booking records a unit allocated to an applicant. Created exactly once per
// applicant when their application transitions to BOOKED; immutable except
// for removal on an approved withdrawal.
type Booking struct {
	ID            string    `db:"id" json:"id"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	ApplicantID   string    `db:"applicant_id" json:"applicant_id"`
	ProjectID     string    `db:"project_id" json:"project_id"`
	UnitType      UnitType  `db:"unit_type" json:"unit_type"`
	BookedBy      string    `db:"booked_by" json:"booked_by"`
	BookedAt      time.Time `db:"booked_at" json:"booked_at"`
}

// BookingDetail carries contextual info for receipts and reports.
type BookingDetail struct {
	Booking
	ApplicantName string        `db:"applicant_name" json:"applicant_name"`
	ApplicantNRIC string        `db:"applicant_nric" json:"applicant_nric"`
	ApplicantAge  int           `db:"applicant_age" json:"applicant_age"`
	MaritalStatus MaritalStatus `db:"marital_status" json:"marital_status"`
	ProjectName   string        `db:"project_name" json:"project_name"`
	Neighborhood  string        `db:"neighborhood" json:"neighborhood"`
}

// BookingFilter captures report criteria over bookings.
type BookingFilter struct {
	ProjectID     string
	UnitType      UnitType
	MaritalStatus MaritalStatus
	Page          int
	PageSize      int
}
