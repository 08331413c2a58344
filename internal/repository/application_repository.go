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

// ApplicationRepository manages persistence for flat applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationDetailColumns = `a.id, a.applicant_id, a.project_id, a.preferred_type, a.status, a.submitted_at, a.withdrawal_requested_at, a.updated_at,
        u.full_name AS applicant_name, u.nric AS applicant_nric, p.name AS project_name`

// List returns application details matching the provided filters.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := "FROM applications a JOIN users u ON u.id = a.applicant_id JOIN projects p ON p.id = a.project_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ApplicantID != "" {
		conditions = append(conditions, fmt.Sprintf("a.applicant_id = $%d", len(args)+1))
		args = append(args, filter.ApplicantID)
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, fmt.Sprintf("a.project_id = $%d", len(args)+1))
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"submitted_at": "a.submitted_at",
		"updated_at":   "a.updated_at",
		"status":       "a.status",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "a.submitted_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		applicationDetailColumns, base, column, order, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// FindByID fetches a bare application by ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, applicant_id, project_id, preferred_type, status, submitted_at, withdrawal_requested_at, updated_at
        FROM applications WHERE id = $1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// FindDetailByID fetches an application with applicant and project context.
func (r *ApplicationRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications a
        JOIN users u ON u.id = a.applicant_id
        JOIN projects p ON p.id = a.project_id
        WHERE a.id = $1`, applicationDetailColumns)
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindActiveByApplicant fetches the applicant's single active application.
// Returns sql.ErrNoRows when none exists.
func (r *ApplicationRepository) FindActiveByApplicant(ctx context.Context, applicantID string) (*models.Application, error) {
	const query = `SELECT id, applicant_id, project_id, preferred_type, status, submitted_at, withdrawal_requested_at, updated_at
        FROM applications WHERE applicant_id = $1 AND status IN ($2, $3, $4)
        ORDER BY submitted_at DESC LIMIT 1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, applicantID,
		models.ApplicationPending, models.ApplicationSuccessful, models.ApplicationBooked); err != nil {
		return nil, err
	}
	return &application, nil
}

// ListByApplicant returns the applicant's full application history.
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	const query = `SELECT id, applicant_id, project_id, preferred_type, status, submitted_at, withdrawal_requested_at, updated_at
        FROM applications WHERE applicant_id = $1 ORDER BY submitted_at DESC`
	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, applicantID); err != nil {
		return nil, fmt.Errorf("list applications by applicant: %w", err)
	}
	return applications, nil
}

// CountBlockingByProject counts applications whose state blocks deletion of
// the project: anything still pending a decision or awaiting a booking.
func (r *ApplicationRepository) CountBlockingByProject(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM applications WHERE project_id = $1 AND status IN ($2, $3, $4)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, projectID,
		models.ApplicationPending, models.ApplicationSuccessful, models.ApplicationBooked); err != nil {
		return 0, fmt.Errorf("count blocking applications: %w", err)
	}
	return count, nil
}

// Create inserts a new application record.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if application.SubmittedAt.IsZero() {
		application.SubmittedAt = now
	}
	application.UpdatedAt = now
	const query = `INSERT INTO applications (id, applicant_id, project_id, preferred_type, status, submitted_at, updated_at)
        VALUES (:id, :applicant_id, :project_id, :preferred_type, :status, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus transitions an application to the given status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, updatedAt time.Time) error {
	const query = `UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, updatedAt, id); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// SetWithdrawalRequested stamps a pending withdrawal request.
func (r *ApplicationRepository) SetWithdrawalRequested(ctx context.Context, id string, requestedAt time.Time) error {
	const query = `UPDATE applications SET withdrawal_requested_at = $1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, requestedAt, id); err != nil {
		return fmt.Errorf("set withdrawal requested: %w", err)
	}
	return nil
}

// ClearWithdrawalRequest removes a pending withdrawal request.
func (r *ApplicationRepository) ClearWithdrawalRequest(ctx context.Context, id string) error {
	const query = `UPDATE applications SET withdrawal_requested_at = NULL, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear withdrawal request: %w", err)
	}
	return nil
}
