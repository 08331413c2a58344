package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bto-allocation-api/internal/models"
)

// BookingRepository manages persistence for bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingDetailColumns = `b.id, b.application_id, b.applicant_id, b.project_id, b.unit_type, b.booked_by, b.booked_at,
        u.full_name AS applicant_name, u.nric AS applicant_nric, u.age AS applicant_age, u.marital_status,
        p.name AS project_name, p.neighborhood`

// List returns booking details matching the report filters.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	base := "FROM bookings b JOIN users u ON u.id = b.applicant_id JOIN projects p ON p.id = b.project_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ProjectID != "" {
		conditions = append(conditions, fmt.Sprintf("b.project_id = $%d", len(args)+1))
		args = append(args, filter.ProjectID)
	}
	if filter.UnitType != "" {
		conditions = append(conditions, fmt.Sprintf("b.unit_type = $%d", len(args)+1))
		args = append(args, filter.UnitType)
	}
	if filter.MaritalStatus != "" {
		conditions = append(conditions, fmt.Sprintf("u.marital_status = $%d", len(args)+1))
		args = append(args, filter.MaritalStatus)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY b.booked_at DESC LIMIT %d OFFSET %d",
		bookingDetailColumns, base, size, offset)

	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// FindByID fetches a bare booking by ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, application_id, applicant_id, project_id, unit_type, booked_by, booked_at
        FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindDetailByID fetches a booking with applicant and project context.
func (r *BookingRepository) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings b
        JOIN users u ON u.id = b.applicant_id
        JOIN projects p ON p.id = b.project_id
        WHERE b.id = $1`, bookingDetailColumns)
	var detail models.BookingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByApplicant fetches the applicant's booking. Returns sql.ErrNoRows when
// none exists; at most one row is ever present per applicant.
func (r *BookingRepository) FindByApplicant(ctx context.Context, applicantID string) (*models.Booking, error) {
	const query = `SELECT id, application_id, applicant_id, project_id, unit_type, booked_by, booked_at
        FROM bookings WHERE applicant_id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, applicantID); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create inserts a new booking record.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.BookedAt.IsZero() {
		booking.BookedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bookings (id, application_id, applicant_id, project_id, unit_type, booked_by, booked_at)
        VALUES (:id, :application_id, :applicant_id, :project_id, :unit_type, :booked_by, :booked_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// DeleteByApplication removes the booking tied to an application, used when a
// booked withdrawal is approved.
func (r *BookingRepository) DeleteByApplication(ctx context.Context, applicationID string) error {
	const query = `DELETE FROM bookings WHERE application_id = $1`
	if _, err := r.db.ExecContext(ctx, query, applicationID); err != nil {
		return fmt.Errorf("delete booking by application: %w", err)
	}
	return nil
}
