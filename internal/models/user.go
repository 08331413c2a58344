package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleApplicant UserRole = "APPLICANT"
	RoleOfficer   UserRole = "OFFICER"
	RoleManager   UserRole = "MANAGER"
)

// MaritalStatus is recorded at provisioning and drives application eligibility.
type MaritalStatus string

const (
	MaritalSingle  MaritalStatus = "SINGLE"
	MaritalMarried MaritalStatus = "MARRIED"
)

// User represents an account stored in the users table. Role is fixed at
// creation; only the password hash is mutable afterwards.
type User struct {
	ID            string        `db:"id" json:"id"`
	NRIC          string        `db:"nric" json:"nric"`
	PasswordHash  string        `db:"password_hash" json:"-"`
	FullName      string        `db:"full_name" json:"full_name"`
	Age           int           `db:"age" json:"age"`
	MaritalStatus MaritalStatus `db:"marital_status" json:"marital_status"`
	Role          UserRole      `db:"role" json:"role"`
	LastLogin     *time.Time    `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
