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

// RegistrationRepository manages persistence for officer registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationDetailColumns = `r.id, r.officer_id, r.project_id, r.status, r.requested_at, r.updated_at,
        u.full_name AS officer_name, p.name AS project_name,
        p.open_date AS project_open_date, p.close_date AS project_close_date`

// List returns registration details matching the provided filters.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := "FROM officer_registrations r JOIN users u ON u.id = r.officer_id JOIN projects p ON p.id = r.project_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.OfficerID != "" {
		conditions = append(conditions, fmt.Sprintf("r.officer_id = $%d", len(args)+1))
		args = append(args, filter.OfficerID)
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, fmt.Sprintf("r.project_id = $%d", len(args)+1))
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY r.requested_at DESC LIMIT %d OFFSET %d",
		registrationDetailColumns, base, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// FindByID fetches a bare registration by ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.OfficerRegistration, error) {
	const query = `SELECT id, officer_id, project_id, status, requested_at, updated_at
        FROM officer_registrations WHERE id = $1`
	var registration models.OfficerRegistration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindDetailByID fetches a registration with officer and project context.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM officer_registrations r
        JOIN users u ON u.id = r.officer_id
        JOIN projects p ON p.id = r.project_id
        WHERE r.id = $1`, registrationDetailColumns)
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByOfficerAndProject fetches the single registration for the pair.
func (r *RegistrationRepository) FindByOfficerAndProject(ctx context.Context, officerID, projectID string) (*models.OfficerRegistration, error) {
	const query = `SELECT id, officer_id, project_id, status, requested_at, updated_at
        FROM officer_registrations WHERE officer_id = $1 AND project_id = $2`
	var registration models.OfficerRegistration
	if err := r.db.GetContext(ctx, &registration, query, officerID, projectID); err != nil {
		return nil, err
	}
	return &registration, nil
}

// ListDetailsByOfficer returns every registration the officer has made,
// with the project windows needed for overlap checks.
func (r *RegistrationRepository) ListDetailsByOfficer(ctx context.Context, officerID string) ([]models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM officer_registrations r
        JOIN users u ON u.id = r.officer_id
        JOIN projects p ON p.id = r.project_id
        WHERE r.officer_id = $1 ORDER BY r.requested_at DESC`, registrationDetailColumns)
	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, officerID); err != nil {
		return nil, fmt.Errorf("list registrations by officer: %w", err)
	}
	return registrations, nil
}

// Create inserts a new registration record.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.OfficerRegistration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.RequestedAt.IsZero() {
		registration.RequestedAt = now
	}
	registration.UpdatedAt = now
	const query = `INSERT INTO officer_registrations (id, officer_id, project_id, status, requested_at, updated_at)
        VALUES (:id, :officer_id, :project_id, :status, :requested_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// UpdateStatus transitions a registration to the given status.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, updatedAt time.Time) error {
	const query = `UPDATE officer_registrations SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, updatedAt, id); err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return nil
}
