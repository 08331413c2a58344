package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type registrationRepository interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.OfficerRegistration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	FindByOfficerAndProject(ctx context.Context, officerID, projectID string) (*models.OfficerRegistration, error)
	ListDetailsByOfficer(ctx context.Context, officerID string) ([]models.RegistrationDetail, error)
	Create(ctx context.Context, registration *models.OfficerRegistration) error
	UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, updatedAt time.Time) error
}

type officerApplicationsReader interface {
	ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error)
}

type rosterManager interface {
	AddOfficer(ctx context.Context, project *models.Project, officerID string) error
	RemoveOfficer(ctx context.Context, projectID, officerID string) error
}

// RequestRegistrationRequest asks to administer a project.
type RequestRegistrationRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
}

// RegistrationService drives the officer registration state machine and the
// roster capacity rules that approval decisions must respect.
type RegistrationService struct {
	repo         registrationRepository
	users        applicantReader
	projects     projectDetailReader
	applications officerApplicationsReader
	roster       rosterManager
	locks        *keyedMutex
	logger       *zap.Logger
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(repo registrationRepository, users applicantReader, projects projectDetailReader, applications officerApplicationsReader, roster rosterManager, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		repo:         repo,
		users:        users,
		projects:     projects,
		applications: applications,
		roster:       roster,
		locks:        newKeyedMutex(),
		logger:       logger,
	}
}

// List returns registrations with pagination metadata.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	registrations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return registrations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Request creates a PENDING registration for the officer. The existence check
// and the insert run under an (officer, project) lock.
func (s *RegistrationService) Request(ctx context.Context, officerID, projectID string) (*models.RegistrationDetail, error) {
	officer, err := s.users.FindByID(ctx, officerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "officer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer")
	}
	if officer.Role != models.RoleOfficer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only officers may register for projects")
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	unlock := s.locks.Lock(officerID + ":" + projectID)
	defer unlock()

	if _, err := s.repo.FindByOfficerAndProject(ctx, officerID, projectID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registrations")
	}

	officerRegs, err := s.repo.ListDetailsByOfficer(ctx, officerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer registrations")
	}
	officerApps, err := s.applications.ListByApplicant(ctx, officerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer applications")
	}
	if !CanOfficerRegister(officer, project, officerRegs, officerApps) {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "officer is not eligible to register for this project")
	}

	now := time.Now().UTC()
	registration := &models.OfficerRegistration{
		ID:          uuid.NewString(),
		OfficerID:   officerID,
		ProjectID:   projectID,
		Status:      models.RegistrationPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	s.logger.Info("officer registration requested", zap.String("registration_id", registration.ID), zap.String("project_id", projectID))
	return s.detail(ctx, registration.ID)
}

// Review applies a manager's verdict to a PENDING registration. Approval that
// finds the roster full flips the record to REJECTED and reports SlotsFull;
// an approve call never silently succeeds past capacity.
func (s *RegistrationService) Review(ctx context.Context, managerID, registrationID string, approve bool) (*models.RegistrationDetail, error) {
	registration, err := s.repo.FindByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	project, err := s.projects.FindByID(ctx, registration.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.ManagerID != managerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project is managed by another user")
	}
	if registration.Status != models.RegistrationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "registration is not pending")
	}

	now := time.Now().UTC()
	if !approve {
		if err := s.repo.UpdateStatus(ctx, registrationID, models.RegistrationRejected, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
		}
		return s.detail(ctx, registrationID)
	}

	if err := s.roster.AddOfficer(ctx, project, registration.OfficerID); err != nil {
		if errors.Is(err, appErrors.ErrSlotsFull) {
			if uerr := s.repo.UpdateStatus(ctx, registrationID, models.RegistrationRejected, now); uerr != nil {
				s.logger.Warn("failed to auto-reject registration at capacity", zap.Error(uerr))
			}
			return nil, appErrors.Clone(appErrors.ErrSlotsFull, "officer slots exhausted; registration rejected")
		}
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, registrationID, models.RegistrationApproved, now); err != nil {
		// Keep roster and registration record consistent.
		if rerr := s.roster.RemoveOfficer(ctx, project.ID, registration.OfficerID); rerr != nil {
			s.logger.Error("failed to roll back roster after status update failure", zap.Error(rerr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
	}
	s.logger.Info("officer registration approved", zap.String("registration_id", registrationID), zap.String("project_id", project.ID))
	return s.detail(ctx, registrationID)
}

func (s *RegistrationService) detail(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration detail")
	}
	return detail, nil
}
