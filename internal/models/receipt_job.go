package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReceiptType enumerates the generatable documents.
type ReceiptType string

const (
	ReceiptBooking        ReceiptType = "BOOKING_RECEIPT"
	ReceiptBookingsReport ReceiptType = "BOOKINGS_REPORT"
)

// ReceiptFormat enumerates output encodings.
type ReceiptFormat string

const (
	ReceiptFormatPDF ReceiptFormat = "PDF"
	ReceiptFormatCSV ReceiptFormat = "CSV"
)

// ReceiptStatus enumerates generation job states.
type ReceiptStatus string

const (
	ReceiptStatusQueued     ReceiptStatus = "QUEUED"
	ReceiptStatusProcessing ReceiptStatus = "PROCESSING"
	ReceiptStatusCompleted  ReceiptStatus = "COMPLETED"
	ReceiptStatusFailed     ReceiptStatus = "FAILED"
)

// ReceiptJobParams describes what to render. Stored as JSONB.
type ReceiptJobParams struct {
	BookingID     string        `json:"booking_id,omitempty"`
	ProjectID     string        `json:"project_id,omitempty"`
	UnitType      UnitType      `json:"unit_type,omitempty"`
	MaritalStatus MaritalStatus `json:"marital_status,omitempty"`
	Format        ReceiptFormat `json:"format"`
}

// Value implements driver.Valuer for JSONB persistence.
func (p ReceiptJobParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (p *ReceiptJobParams) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = ReceiptJobParams{}
		return nil
	default:
		return fmt.Errorf("unsupported receipt params type %T", src)
	}
}

// ReceiptJob tracks an asynchronous document generation request.
type ReceiptJob struct {
	ID           string           `db:"id" json:"id"`
	Type         ReceiptType      `db:"type" json:"type"`
	Params       ReceiptJobParams `db:"params" json:"params"`
	Status       ReceiptStatus    `db:"status" json:"status"`
	Progress     int              `db:"progress" json:"progress"`
	ResultPath   *string          `db:"result_path" json:"-"`
	ResultURL    *string          `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string           `db:"created_by" json:"created_by"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	StartedAt    *time.Time       `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time       `db:"finished_at" json:"finished_at,omitempty"`
}
