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

type projectRepository interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	ListByManager(ctx context.Context, managerID string) ([]models.Project, error)
	Create(ctx context.Context, project *models.Project, units []models.ProjectUnit) error
	Update(ctx context.Context, project *models.Project) error
	SetVisibility(ctx context.Context, id string, visible bool, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type blockingApplicationCounter interface {
	CountBlockingByProject(ctx context.Context, projectID string) (int, error)
}

type projectListingCache interface {
	GetListing(ctx context.Context, key string) ([]models.ProjectDetail, bool)
	SetListing(ctx context.Context, key string, projects []models.ProjectDetail)
	Invalidate(ctx context.Context)
}

// UnitAllocation declares inventory for one unit type at project creation.
type UnitAllocation struct {
	UnitType models.UnitType `json:"unit_type" validate:"required"`
	Total    int             `json:"total" validate:"min=0"`
}

// CreateProjectRequest describes a new BTO launch.
type CreateProjectRequest struct {
	Name         string           `json:"name" validate:"required"`
	Neighborhood string           `json:"neighborhood" validate:"required"`
	OpenDate     time.Time        `json:"open_date" validate:"required"`
	CloseDate    time.Time        `json:"close_date" validate:"required"`
	OfficerSlots int              `json:"officer_slots" validate:"min=0,max=10"`
	Units        []UnitAllocation `json:"units" validate:"required,min=1,dive"`
}

// UpdateProjectRequest edits mutable project fields.
type UpdateProjectRequest struct {
	Name         string    `json:"name" validate:"required"`
	Neighborhood string    `json:"neighborhood" validate:"required"`
	OpenDate     time.Time `json:"open_date" validate:"required"`
	CloseDate    time.Time `json:"close_date" validate:"required"`
	OfficerSlots int       `json:"officer_slots" validate:"min=0,max=10"`
}

// ProjectService manages project records: creation under the one-window-per
// manager rule, edits, visibility toggling, and guarded deletion.
type ProjectService struct {
	repo         projectRepository
	users        applicantReader
	applications blockingApplicationCounter
	cache        projectListingCache
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewProjectService constructs ProjectService. cache may be nil.
func NewProjectService(repo projectRepository, users applicantReader, applications blockingApplicationCounter, cache projectListingCache, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		repo:         repo,
		users:        users,
		applications: applications,
		cache:        cache,
		validator:    validate,
		logger:       logger,
	}
}

// List returns projects visible to the actor. Applicants and officers see
// visible projects only; managers see everything. The unfiltered visible
// listing is served from cache when available.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter, actor *models.JWTClaims) ([]models.ProjectDetail, *models.Pagination, error) {
	if actor == nil || actor.Role != models.RoleManager {
		filter.VisibleOnly = true
	}

	cacheable := s.cache != nil && filter.VisibleOnly && filter.Neighborhood == "" && filter.ManagerID == "" && filter.Page <= 1
	if cacheable {
		if projects, ok := s.cache.GetListing(ctx, visibleListingKey); ok {
			return projects, &models.Pagination{Page: 1, PageSize: len(projects), TotalCount: len(projects)}, nil
		}
	}

	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	if cacheable {
		s.cache.SetListing(ctx, visibleListingKey, projects)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return projects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a project with inventory and roster. Hidden projects are only
// shown to staff.
func (s *ProjectService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ProjectDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if !detail.Visible && actor != nil && actor.Role == models.RoleApplicant {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	return detail, nil
}

// Create registers a new project managed by the caller. A manager cannot take
// on two projects with overlapping application windows.
func (s *ProjectService) Create(ctx context.Context, managerID string, req CreateProjectRequest) (*models.ProjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	if req.OpenDate.After(req.CloseDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "open date is after close date")
	}
	seen := make(map[models.UnitType]struct{}, len(req.Units))
	for _, u := range req.Units {
		if !models.ValidUnitType(u.UnitType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown unit type")
		}
		if _, dup := seen[u.UnitType]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate unit type")
		}
		seen[u.UnitType] = struct{}{}
	}

	manager, err := s.users.FindByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "manager not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
	}
	managed, err := s.repo.ListByManager(ctx, managerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load managed projects")
	}
	if !CanManagerHandle(manager, req.OpenDate, req.CloseDate, managed, "") {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "manager already handles a project in this window")
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Neighborhood: req.Neighborhood,
		OpenDate:     req.OpenDate,
		CloseDate:    req.CloseDate,
		ManagerID:    managerID,
		OfficerSlots: req.OfficerSlots,
		Visible:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	units := make([]models.ProjectUnit, 0, len(req.Units))
	for _, u := range req.Units {
		units = append(units, models.ProjectUnit{
			ProjectID:      project.ID,
			UnitType:       u.UnitType,
			TotalUnits:     u.Total,
			RemainingUnits: u.Total,
		})
	}
	if err := s.repo.Create(ctx, project, units); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	s.invalidate(ctx)
	s.logger.Info("project created", zap.String("project_id", project.ID), zap.String("manager_id", managerID))
	return s.detail(ctx, project.ID)
}

// Update edits project metadata. Only the managing user may edit, and the new
// window must not collide with their other projects.
func (s *ProjectService) Update(ctx context.Context, managerID, id string, req UpdateProjectRequest) (*models.ProjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	if req.OpenDate.After(req.CloseDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "open date is after close date")
	}

	project, err := s.ownedProject(ctx, managerID, id)
	if err != nil {
		return nil, err
	}
	manager, err := s.users.FindByID(ctx, managerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
	}
	managed, err := s.repo.ListByManager(ctx, managerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load managed projects")
	}
	if !CanManagerHandle(manager, req.OpenDate, req.CloseDate, managed, id) {
		return nil, appErrors.Clone(appErrors.ErrIneligible, "manager already handles a project in this window")
	}

	project.Name = req.Name
	project.Neighborhood = req.Neighborhood
	project.OpenDate = req.OpenDate
	project.CloseDate = req.CloseDate
	project.OfficerSlots = req.OfficerSlots
	project.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}
	s.invalidate(ctx)
	return s.detail(ctx, id)
}

// SetVisibility toggles the listing flag.
func (s *ProjectService) SetVisibility(ctx context.Context, managerID, id string, visible bool) (*models.ProjectDetail, error) {
	if _, err := s.ownedProject(ctx, managerID, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetVisibility(ctx, id, visible, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visibility")
	}
	s.invalidate(ctx)
	return s.detail(ctx, id)
}

// Delete removes a project once no application against it is still pending
// or awaiting booking.
func (s *ProjectService) Delete(ctx context.Context, managerID, id string) error {
	if _, err := s.ownedProject(ctx, managerID, id); err != nil {
		return err
	}
	blocking, err := s.applications.CountBlockingByProject(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	if blocking > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "project has unresolved applications")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}
	s.invalidate(ctx)
	s.logger.Info("project deleted", zap.String("project_id", id))
	return nil
}

func (s *ProjectService) ownedProject(ctx context.Context, managerID, id string) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.ManagerID != managerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "project is managed by another user")
	}
	return project, nil
}

func (s *ProjectService) detail(ctx context.Context, id string) (*models.ProjectDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project detail")
	}
	return detail, nil
}

func (s *ProjectService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
