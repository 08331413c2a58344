package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	FindByApplicant(ctx context.Context, applicantID string) (*models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	DeleteByApplication(ctx context.Context, applicationID string) error
}

type bookingApplicationStore interface {
	FindActiveByApplicant(ctx context.Context, applicantID string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, updatedAt time.Time) error
}

type unitReserver interface {
	ReserveUnit(ctx context.Context, projectID string, unitType models.UnitType) error
	ReleaseUnit(ctx context.Context, projectID string, unitType models.UnitType) error
	IsOfficer(ctx context.Context, projectID, officerID string) (bool, error)
}

// PerformBookingRequest books a unit for a successful applicant.
type PerformBookingRequest struct {
	ApplicantID string          `json:"applicant_id" validate:"required"`
	UnitType    models.UnitType `json:"unit_type" validate:"required"`
}

// BookingService performs the terminal allocation step: one unit off the
// inventory and the application to BOOKED, atomically from the caller's view.
type BookingService struct {
	repo         bookingRepository
	applications bookingApplicationStore
	inventory    unitReserver
	locks        *keyedMutex
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      allocationRecorder
}

// NewBookingService constructs BookingService.
func NewBookingService(repo bookingRepository, applications bookingApplicationStore, inventory unitReserver, validate *validator.Validate, logger *zap.Logger, metrics allocationRecorder) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:         repo,
		applications: applications,
		inventory:    inventory,
		locks:        newKeyedMutex(),
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
	}
}

// List returns bookings matching the filter with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one booking with context for receipts.
func (s *BookingService) Get(ctx context.Context, id string) (*models.BookingDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return detail, nil
}

// Perform books a unit of the requested type for the applicant. The officer
// must be on the project's approved roster, the application SUCCESSFUL, the
// type the recorded preference, and a unit remaining. Unit decrement and
// status transition commit together; a failed transition puts the unit back
// before the error is returned.
func (s *BookingService) Perform(ctx context.Context, officerID string, req PerformBookingRequest) (*models.BookingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !models.ValidUnitType(req.UnitType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown unit type")
	}

	// The whole check-reserve-create-transition sequence runs under the
	// applicant's lock; a second concurrent booking for the same applicant
	// observes the first one's outcome.
	unlock := s.locks.Lock(req.ApplicantID)
	defer unlock()

	application, err := s.applications.FindActiveByApplicant(ctx, req.ApplicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant has no successful application")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.Status != models.ApplicationSuccessful {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is not in a bookable state")
	}

	onRoster, err := s.inventory.IsOfficer(ctx, application.ProjectID, officerID)
	if err != nil {
		return nil, err
	}
	if !onRoster {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "officer is not approved for this project")
	}

	if _, err := s.repo.FindByApplicant(ctx, req.ApplicantID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateBooking, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check bookings")
	}

	if req.UnitType != application.PreferredType {
		return nil, appErrors.Clone(appErrors.ErrPreferenceMismatch, "")
	}

	if err := s.inventory.ReserveUnit(ctx, application.ProjectID, req.UnitType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		ID:            uuid.NewString(),
		ApplicationID: application.ID,
		ApplicantID:   req.ApplicantID,
		ProjectID:     application.ProjectID,
		UnitType:      req.UnitType,
		BookedBy:      officerID,
		BookedAt:      now,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		s.rollbackUnit(ctx, application.ProjectID, req.UnitType)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	if err := s.applications.UpdateStatus(ctx, application.ID, models.ApplicationBooked, now); err != nil {
		if derr := s.repo.DeleteByApplication(ctx, application.ID); derr != nil {
			s.logger.Error("failed to remove booking during rollback", zap.Error(derr))
		}
		s.rollbackUnit(ctx, application.ProjectID, req.UnitType)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition application")
	}

	if s.metrics != nil {
		s.metrics.BookingCreated(application.ProjectID, req.UnitType)
	}
	s.logger.Info("unit booked",
		zap.String("booking_id", booking.ID),
		zap.String("project_id", application.ProjectID),
		zap.String("unit_type", string(req.UnitType)))
	detail, err := s.repo.FindDetailByID(ctx, booking.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking detail")
	}
	return detail, nil
}

func (s *BookingService) rollbackUnit(ctx context.Context, projectID string, unitType models.UnitType) {
	if err := s.inventory.ReleaseUnit(ctx, projectID, unitType); err != nil {
		s.logger.Error("failed to return unit during rollback",
			zap.String("project_id", projectID),
			zap.String("unit_type", string(unitType)),
			zap.Error(err))
	}
}
