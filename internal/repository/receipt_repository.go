package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bto-allocation-api/internal/models"
)

// ReceiptRepository manages persistence for receipt generation jobs.
type ReceiptRepository struct {
	db *sqlx.DB
}

// NewReceiptRepository constructs a ReceiptRepository.
func NewReceiptRepository(db *sqlx.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Create inserts a new receipt job.
func (r *ReceiptRepository) Create(ctx context.Context, job *models.ReceiptJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO receipt_jobs (id, type, params, status, progress, created_by, created_at)
        VALUES (:id, :type, :params, :status, :progress, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create receipt job: %w", err)
	}
	return nil
}

// FindByID fetches a receipt job by ID.
func (r *ReceiptRepository) FindByID(ctx context.Context, id string) (*models.ReceiptJob, error) {
	const query = `SELECT id, type, params, status, progress, result_path, result_url, error_message, created_by, created_at, started_at, finished_at
        FROM receipt_jobs WHERE id = $1`
	var job models.ReceiptJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update rewrites the mutable job columns.
func (r *ReceiptRepository) Update(ctx context.Context, job *models.ReceiptJob) error {
	const query = `UPDATE receipt_jobs SET status = :status, progress = :progress, result_path = :result_path,
        result_url = :result_url, error_message = :error_message, started_at = :started_at, finished_at = :finished_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("update receipt job: %w", err)
	}
	return nil
}

// ListQueued returns jobs still waiting for a worker, oldest first.
func (r *ReceiptRepository) ListQueued(ctx context.Context, limit int) ([]models.ReceiptJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, type, params, status, progress, result_path, result_url, error_message, created_by, created_at, started_at, finished_at
        FROM receipt_jobs WHERE status = $1 ORDER BY created_at LIMIT %d`, limit)
	var jobs []models.ReceiptJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReceiptStatusQueued); err != nil {
		return nil, fmt.Errorf("list queued receipt jobs: %w", err)
	}
	return jobs, nil
}
