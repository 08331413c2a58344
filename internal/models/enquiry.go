package models

import "time"

// Enquiry is a question an applicant raised about a project. Officers and the
// managing user of the project may attach a single reply.
type Enquiry struct {
	ID          string     `db:"id" json:"id"`
	ApplicantID string     `db:"applicant_id" json:"applicant_id"`
	ProjectID   string     `db:"project_id" json:"project_id"`
	Content     string     `db:"content" json:"content"`
	Reply       *string    `db:"reply" json:"reply,omitempty"`
	RepliedBy   *string    `db:"replied_by" json:"replied_by,omitempty"`
	RepliedAt   *time.Time `db:"replied_at" json:"replied_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// EnquiryFilter captures listing criteria for enquiries.
type EnquiryFilter struct {
	ApplicantID string
	ProjectID   string
	Unanswered  bool
	Page        int
	PageSize    int
}
