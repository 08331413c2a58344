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

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	FindActiveByApplicant(ctx context.Context, applicantID string) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error)
	Create(ctx context.Context, application *models.Application) error
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, updatedAt time.Time) error
	SetWithdrawalRequested(ctx context.Context, id string, requestedAt time.Time) error
	ClearWithdrawalRequest(ctx context.Context, id string) error
}

type applicantReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type projectDetailReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
}

type officerRegistrationChecker interface {
	FindByOfficerAndProject(ctx context.Context, officerID, projectID string) (*models.OfficerRegistration, error)
}

type applicantBookingStore interface {
	FindByApplicant(ctx context.Context, applicantID string) (*models.Booking, error)
	DeleteByApplication(ctx context.Context, applicationID string) error
}

type unitReleaser interface {
	ReleaseUnit(ctx context.Context, projectID string, unitType models.UnitType) error
}

// SubmitApplicationRequest describes an application submission.
type SubmitApplicationRequest struct {
	ProjectID     string          `json:"project_id" validate:"required"`
	PreferredType models.UnitType `json:"preferred_type" validate:"required"`
}

// ReviewApplicationRequest carries a manager's verdict.
type ReviewApplicationRequest struct {
	Approve bool `json:"approve"`
}

// ApplicationService drives the application state machine: submission,
// manager review, withdrawal requests, and withdrawal review including the
// booked-unit reversal.
type ApplicationService struct {
	repo          applicationRepository
	users         applicantReader
	projects      projectDetailReader
	registrations officerRegistrationChecker
	bookings      applicantBookingStore
	inventory     unitReleaser
	locks         *keyedMutex
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       allocationRecorder
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(repo applicationRepository, users applicantReader, projects projectDetailReader, registrations officerRegistrationChecker, bookings applicantBookingStore, inventory unitReleaser, validate *validator.Validate, logger *zap.Logger, metrics allocationRecorder) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		repo:          repo,
		users:         users,
		projects:      projects,
		registrations: registrations,
		bookings:      bookings,
		inventory:     inventory,
		locks:         newKeyedMutex(),
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
	}
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return applications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one application; applicants may only see their own.
func (s *ApplicationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if actor != nil && actor.Role == models.RoleApplicant && detail.ApplicantID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your application")
	}
	return detail, nil
}

// Submit creates a PENDING application for the applicant. The duplicate check
// and the insert run under the applicant's lock so a second concurrent submit
// observes the first.
func (s *ApplicationService) Submit(ctx context.Context, applicantID string, req SubmitApplicationRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if !models.ValidUnitType(req.PreferredType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown unit type")
	}

	applicant, err := s.users.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}

	project, err := s.projects.FindDetailByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	now := time.Now().UTC()
	if now.After(project.CloseDate) {
		return nil, appErrors.Clone(appErrors.ErrProjectClosed, "")
	}

	if !CanApply(applicant, project) {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "applicant is not eligible for this project")
	}
	if applicant.MaritalStatus == models.MaritalSingle && req.PreferredType != models.UnitTwoRoom {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "single applicants may only apply for two-room units")
	}
	if !project.OffersUnitType(req.PreferredType) {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "project does not offer the requested unit type")
	}

	// Officers must not apply to a project they registered to administer.
	if applicant.Role == models.RoleOfficer {
		if _, err := s.registrations.FindByOfficerAndProject(ctx, applicantID, req.ProjectID); err == nil {
			return nil, appErrors.Clone(appErrors.ErrIneligible, "officers cannot apply to a project they registered for")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registrations")
		}
	}

	unlock := s.locks.Lock(applicantID)
	defer unlock()

	if _, err := s.repo.FindActiveByApplicant(ctx, applicantID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateApplication, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active applications")
	}

	application := &models.Application{
		ID:            uuid.NewString(),
		ApplicantID:   applicantID,
		ProjectID:     req.ProjectID,
		PreferredType: req.PreferredType,
		Status:        models.ApplicationPending,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	if s.metrics != nil {
		s.metrics.ApplicationSubmitted(project.ID)
	}
	s.logger.Info("application submitted", zap.String("application_id", application.ID), zap.String("project_id", project.ID))
	return s.detail(ctx, application.ID)
}

// RequestWithdrawal records a withdrawal request on the applicant's active
// application. The status is untouched; the request queues for manager review.
func (s *ApplicationService) RequestWithdrawal(ctx context.Context, applicantID string) (*models.ApplicationDetail, error) {
	application, err := s.repo.FindActiveByApplicant(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active application")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.WithdrawalRequestedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "withdrawal already requested")
	}
	if err := s.repo.SetWithdrawalRequested(ctx, application.ID, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record withdrawal request")
	}
	return s.detail(ctx, application.ID)
}

// Review applies a manager's verdict to a PENDING application.
func (s *ApplicationService) Review(ctx context.Context, managerID, applicationID string, approve bool) (*models.ApplicationDetail, error) {
	application, project, err := s.loadForManager(ctx, managerID, applicationID)
	if err != nil {
		return nil, err
	}
	if application.Status != models.ApplicationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application is not pending")
	}

	status := models.ApplicationUnsuccessful
	if approve {
		status = models.ApplicationSuccessful
	}
	if err := s.repo.UpdateStatus(ctx, applicationID, status, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	s.logger.Info("application reviewed",
		zap.String("application_id", applicationID),
		zap.String("project_id", project.ID),
		zap.String("status", string(status)))
	return s.detail(ctx, applicationID)
}

// ReviewWithdrawal resolves a pending withdrawal request. Approval moves the
// application to UNSUCCESSFUL; for a BOOKED application the booked unit is
// returned to inventory and the booking removed. Rejection clears the request
// and leaves the status untouched.
func (s *ApplicationService) ReviewWithdrawal(ctx context.Context, managerID, applicationID string, approve bool) (*models.ApplicationDetail, error) {
	application, _, err := s.loadForManager(ctx, managerID, applicationID)
	if err != nil {
		return nil, err
	}
	if application.WithdrawalRequestedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no pending withdrawal request")
	}
	if application.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application already resolved")
	}

	if !approve {
		if err := s.repo.ClearWithdrawalRequest(ctx, applicationID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear withdrawal request")
		}
		return s.detail(ctx, applicationID)
	}

	// Transition first, compensate after. A failed transition must leave the
	// booking and the reserved unit untouched; a failed reversal restores the
	// BOOKED status so the application never reads withdrawn while its unit
	// is still held.
	wasBooked := application.Status == models.ApplicationBooked
	if err := s.repo.UpdateStatus(ctx, applicationID, models.ApplicationUnsuccessful, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	if wasBooked {
		if err := s.reverseBooking(ctx, application); err != nil {
			if rerr := s.repo.UpdateStatus(ctx, applicationID, models.ApplicationBooked, time.Now().UTC()); rerr != nil {
				s.logger.Error("failed to restore booked status during reversal rollback",
					zap.String("application_id", applicationID), zap.Error(rerr))
			}
			return nil, err
		}
	}
	if err := s.repo.ClearWithdrawalRequest(ctx, applicationID); err != nil {
		s.logger.Warn("failed to clear withdrawal request after approval", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.WithdrawalApproved(application.ProjectID)
	}
	return s.detail(ctx, applicationID)
}

func (s *ApplicationService) reverseBooking(ctx context.Context, application *models.Application) error {
	booking, err := s.bookings.FindByApplicant(ctx, application.ApplicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "booked application has no booking record")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if err := s.inventory.ReleaseUnit(ctx, booking.ProjectID, booking.UnitType); err != nil {
		return err
	}
	if err := s.bookings.DeleteByApplication(ctx, application.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove booking")
	}
	return nil
}

func (s *ApplicationService) loadForManager(ctx context.Context, managerID, applicationID string) (*models.Application, *models.Project, error) {
	application, err := s.repo.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	project, err := s.projects.FindByID(ctx, application.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.ManagerID != managerID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "project is managed by another user")
	}
	return application, project, nil
}

func (s *ApplicationService) detail(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application detail")
	}
	return detail, nil
}
