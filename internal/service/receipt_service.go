package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
	"github.com/noah-isme/bto-allocation-api/pkg/export"
	"github.com/noah-isme/bto-allocation-api/pkg/jobs"
	"github.com/noah-isme/bto-allocation-api/pkg/storage"
)

type receiptJobRepository interface {
	Create(ctx context.Context, job *models.ReceiptJob) error
	FindByID(ctx context.Context, id string) (*models.ReceiptJob, error)
	Update(ctx context.Context, job *models.ReceiptJob) error
	ListQueued(ctx context.Context, limit int) ([]models.ReceiptJob, error)
}

type receiptBookingReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
}

type receiptEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CreateReceiptRequest queues a single-booking receipt document.
type CreateReceiptRequest struct {
	BookingID string               `json:"booking_id" validate:"required,uuid"`
	Format    models.ReceiptFormat `json:"format" validate:"required,oneof=PDF CSV"`
}

// CreateReportRequest queues a filtered bookings report.
type CreateReportRequest struct {
	ProjectID     string               `json:"project_id" validate:"omitempty,uuid"`
	UnitType      models.UnitType      `json:"unit_type" validate:"omitempty,oneof=TWO_ROOM THREE_ROOM"`
	MaritalStatus models.MaritalStatus `json:"marital_status" validate:"omitempty,oneof=SINGLE MARRIED"`
	Format        models.ReceiptFormat `json:"format" validate:"required,oneof=PDF CSV"`
}

// ReceiptService generates booking receipts and reports asynchronously.
type ReceiptService struct {
	repo      receiptJobRepository
	bookings  receiptBookingReader
	queue     receiptEnqueuer
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReceiptService constructs a ReceiptService. The queue is attached later
// with SetQueue because the queue handler needs the service itself.
func NewReceiptService(
	repo receiptJobRepository,
	bookings receiptBookingReader,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReceiptService{
		repo:      repo,
		bookings:  bookings,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// SetQueue attaches the dispatch queue once constructed.
func (s *ReceiptService) SetQueue(queue receiptEnqueuer) {
	s.queue = queue
}

// CreateReceipt queues generation of a receipt for a single booking.
func (s *ReceiptService) CreateReceipt(ctx context.Context, createdBy string, req CreateReceiptRequest) (*models.ReceiptJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid receipt payload")
	}

	if _, err := s.bookings.FindDetailByID(ctx, req.BookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	return s.enqueue(ctx, createdBy, models.ReceiptBooking, models.ReceiptJobParams{
		BookingID: req.BookingID,
		Format:    req.Format,
	})
}

// CreateReport queues generation of a bookings report for the given filters.
func (s *ReceiptService) CreateReport(ctx context.Context, createdBy string, req CreateReportRequest) (*models.ReceiptJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	return s.enqueue(ctx, createdBy, models.ReceiptBookingsReport, models.ReceiptJobParams{
		ProjectID:     req.ProjectID,
		UnitType:      req.UnitType,
		MaritalStatus: req.MaritalStatus,
		Format:        req.Format,
	})
}

// GetStatus returns the tracked job for polling, owners only.
func (s *ReceiptService) GetStatus(ctx context.Context, actor *models.JWTClaims, id string) (*models.ReceiptJob, error) {
	job, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleManager && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt job not found")
	}
	return job, nil
}

// Download validates a signed token and opens the stored file.
func (s *ReceiptService) Download(ctx context.Context, token string) (*os.File, *models.ReceiptJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job, err := s.find(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.ReceiptStatusCompleted || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document is not available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document file missing")
	}
	return file, job, nil
}

// Process is the queue handler rendering a single job.
func (s *ReceiptService) Process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load receipt job %s: %w", jobID, err)
	}
	if record.Status != models.ReceiptStatusQueued {
		return nil
	}

	now := time.Now().UTC()
	record.Status = models.ReceiptStatusProcessing
	record.StartedAt = &now
	record.Progress = 10
	if err := s.repo.Update(ctx, record); err != nil {
		return fmt.Errorf("mark receipt job processing: %w", err)
	}

	relPath, renderErr := s.render(ctx, record)
	finished := time.Now().UTC()
	record.FinishedAt = &finished

	if renderErr != nil {
		msg := renderErr.Error()
		record.Status = models.ReceiptStatusFailed
		record.ErrorMessage = &msg
		record.Progress = 100
		if err := s.repo.Update(ctx, record); err != nil {
			s.logger.Error("failed to persist receipt failure", zap.String("job_id", record.ID), zap.Error(err))
		}
		s.logger.Warn("receipt generation failed", zap.String("job_id", record.ID), zap.Error(renderErr))
		return nil
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		msg := err.Error()
		record.Status = models.ReceiptStatusFailed
		record.ErrorMessage = &msg
		record.Progress = 100
		if uerr := s.repo.Update(ctx, record); uerr != nil {
			s.logger.Error("failed to persist receipt failure", zap.String("job_id", record.ID), zap.Error(uerr))
		}
		return nil
	}

	url := "/api/v1/receipts/download/" + token
	record.Status = models.ReceiptStatusCompleted
	record.ResultPath = &relPath
	record.ResultURL = &url
	record.Progress = 100
	if err := s.repo.Update(ctx, record); err != nil {
		return fmt.Errorf("persist receipt completion: %w", err)
	}

	s.logger.Info("receipt generated",
		zap.String("job_id", record.ID),
		zap.String("type", string(record.Type)),
		zap.String("path", relPath))
	return nil
}

// RequeuePending pushes QUEUED jobs back onto the queue, used at startup to
// recover jobs orphaned by a crash.
func (s *ReceiptService) RequeuePending(ctx context.Context) error {
	pending, err := s.repo.ListQueued(ctx, 100)
	if err != nil {
		return fmt.Errorf("list queued receipt jobs: %w", err)
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job.ID}); err != nil {
			s.logger.Warn("failed to requeue receipt job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return nil
}

// Cleanup deletes generated files older than the retention TTL.
func (s *ReceiptService) Cleanup(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("receipt cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("receipt files cleaned", zap.Int("count", len(deleted)))
	}
}

func (s *ReceiptService) find(ctx context.Context, id string) (*models.ReceiptJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt job")
	}
	return job, nil
}

func (s *ReceiptService) enqueue(ctx context.Context, createdBy string, receiptType models.ReceiptType, params models.ReceiptJobParams) (*models.ReceiptJob, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "receipt generation is disabled")
	}

	job := &models.ReceiptJob{
		ID:        uuid.NewString(),
		Type:      receiptType,
		Params:    params,
		Status:    models.ReceiptStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create receipt job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(receiptType), Payload: job.ID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue receipt job")
	}
	return job, nil
}

func (s *ReceiptService) render(ctx context.Context, job *models.ReceiptJob) (string, error) {
	switch job.Type {
	case models.ReceiptBooking:
		detail, err := s.bookings.FindDetailByID(ctx, job.Params.BookingID)
		if err != nil {
			return "", fmt.Errorf("load booking %s: %w", job.Params.BookingID, err)
		}
		return s.write(job, bookingDataset([]models.BookingDetail{*detail}), "Booking Receipt")
	case models.ReceiptBookingsReport:
		filter := models.BookingFilter{
			ProjectID:     job.Params.ProjectID,
			UnitType:      job.Params.UnitType,
			MaritalStatus: job.Params.MaritalStatus,
			Page:          1,
			PageSize:      10000,
		}
		details, _, err := s.bookings.List(ctx, filter)
		if err != nil {
			return "", fmt.Errorf("load bookings: %w", err)
		}
		return s.write(job, bookingDataset(details), "Bookings Report")
	default:
		return "", fmt.Errorf("unknown receipt type %q", job.Type)
	}
}

func (s *ReceiptService) write(job *models.ReceiptJob, data export.Dataset, title string) (string, error) {
	var (
		payload []byte
		ext     string
		err     error
	)
	switch job.Params.Format {
	case models.ReceiptFormatCSV:
		payload, err = s.csv.Render(data)
		ext = "csv"
	case models.ReceiptFormatPDF:
		payload, err = s.pdf.Render(data, title)
		ext = "pdf"
	default:
		return "", fmt.Errorf("unknown receipt format %q", job.Params.Format)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s/%s.%s", strings.ToLower(string(job.Type)), job.ID, ext)
	return s.store.Save(filename, payload)
}

func bookingDataset(details []models.BookingDetail) export.Dataset {
	headers := []string{"Booking ID", "Applicant", "NRIC", "Age", "Marital Status", "Project", "Neighborhood", "Unit Type", "Booked At"}
	rows := make([]map[string]string, 0, len(details))
	for _, d := range details {
		rows = append(rows, map[string]string{
			"Booking ID":     d.ID,
			"Applicant":      d.ApplicantName,
			"NRIC":           d.ApplicantNRIC,
			"Age":            strconv.Itoa(d.ApplicantAge),
			"Marital Status": string(d.MaritalStatus),
			"Project":        d.ProjectName,
			"Neighborhood":   d.Neighborhood,
			"Unit Type":      string(d.UnitType),
			"Booked At":      d.BookedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
