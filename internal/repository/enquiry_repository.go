package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bto-allocation-api/internal/models"
)

// EnquiryRepository manages persistence for applicant enquiries.
type EnquiryRepository struct {
	db *sqlx.DB
}

// NewEnquiryRepository constructs an EnquiryRepository.
func NewEnquiryRepository(db *sqlx.DB) *EnquiryRepository {
	return &EnquiryRepository{db: db}
}

// List returns enquiries matching the provided filters.
func (r *EnquiryRepository) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error) {
	base := "FROM enquiries e"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ApplicantID != "" {
		conditions = append(conditions, fmt.Sprintf("e.applicant_id = $%d", len(args)+1))
		args = append(args, filter.ApplicantID)
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, fmt.Sprintf("e.project_id = $%d", len(args)+1))
		args = append(args, filter.ProjectID)
	}
	if filter.Unanswered {
		conditions = append(conditions, "e.reply IS NULL")
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

	query := fmt.Sprintf(`SELECT e.id, e.applicant_id, e.project_id, e.content, e.reply, e.replied_by, e.replied_at, e.created_at, e.updated_at
        %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var enquiries []models.Enquiry
	if err := r.db.SelectContext(ctx, &enquiries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enquiries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enquiries: %w", err)
	}
	return enquiries, total, nil
}

// FindByID fetches an enquiry by ID.
func (r *EnquiryRepository) FindByID(ctx context.Context, id string) (*models.Enquiry, error) {
	const query = `SELECT id, applicant_id, project_id, content, reply, replied_by, replied_at, created_at, updated_at
        FROM enquiries WHERE id = $1`
	var enquiry models.Enquiry
	if err := r.db.GetContext(ctx, &enquiry, query, id); err != nil {
		return nil, err
	}
	return &enquiry, nil
}

// Create inserts a new enquiry record.
func (r *EnquiryRepository) Create(ctx context.Context, enquiry *models.Enquiry) error {
	if enquiry.ID == "" {
		enquiry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enquiry.CreatedAt.IsZero() {
		enquiry.CreatedAt = now
	}
	enquiry.UpdatedAt = now
	const query = `INSERT INTO enquiries (id, applicant_id, project_id, content, created_at, updated_at)
        VALUES (:id, :applicant_id, :project_id, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enquiry); err != nil {
		return fmt.Errorf("create enquiry: %w", err)
	}
	return nil
}

// UpdateContent rewrites the enquiry text. Guarded against replied enquiries
// at the SQL level as well.
func (r *EnquiryRepository) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	const query = `UPDATE enquiries SET content = $1, updated_at = $2 WHERE id = $3 AND reply IS NULL`
	result, err := r.db.ExecContext(ctx, query, content, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update enquiry: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetReply attaches the single staff reply.
func (r *EnquiryRepository) SetReply(ctx context.Context, id, reply, repliedBy string, repliedAt time.Time) error {
	const query = `UPDATE enquiries SET reply = $1, replied_by = $2, replied_at = $3, updated_at = $3
        WHERE id = $4 AND reply IS NULL`
	result, err := r.db.ExecContext(ctx, query, reply, repliedBy, repliedAt, id)
	if err != nil {
		return fmt.Errorf("set enquiry reply: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an enquiry.
func (r *EnquiryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enquiries WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enquiry: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
