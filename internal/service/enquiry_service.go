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

type enquiryRepository interface {
	List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error)
	FindByID(ctx context.Context, id string) (*models.Enquiry, error)
	Create(ctx context.Context, enquiry *models.Enquiry) error
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
	SetReply(ctx context.Context, id, reply, repliedBy string, repliedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type enquiryProjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	IsOfficer(ctx context.Context, projectID, officerID string) (bool, error)
}

// SubmitEnquiryRequest creates an enquiry against a project.
type SubmitEnquiryRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Content   string `json:"content" validate:"required,max=2000"`
}

// UpdateEnquiryRequest edits an unreplied enquiry.
type UpdateEnquiryRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// ReplyEnquiryRequest attaches a reply to an enquiry.
type ReplyEnquiryRequest struct {
	Reply string `json:"reply" validate:"required,max=2000"`
}

// EnquiryService manages applicant enquiries and staff replies.
type EnquiryService struct {
	repo      enquiryRepository
	projects  enquiryProjectReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnquiryService constructs an EnquiryService.
func NewEnquiryService(repo enquiryRepository, projects enquiryProjectReader, validate *validator.Validate, logger *zap.Logger) *EnquiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnquiryService{repo: repo, projects: projects, validator: validate, logger: logger}
}

// List returns enquiries visible to the caller. Applicants only ever see
// their own; officers and managers may browse any project's enquiries.
func (s *EnquiryService) List(ctx context.Context, actor *models.JWTClaims, filter models.EnquiryFilter) ([]models.Enquiry, *models.Pagination, error) {
	if actor.Role == models.RoleApplicant {
		filter.ApplicantID = actor.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	enquiries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enquiries")
	}
	return enquiries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single enquiry, restricted to the owner for applicants.
func (s *EnquiryService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Enquiry, error) {
	enquiry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleApplicant && enquiry.ApplicantID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
	}
	return enquiry, nil
}

// Submit records a new enquiry from an applicant about a project.
func (s *EnquiryService) Submit(ctx context.Context, applicantID string, req SubmitEnquiryRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enquiry payload")
	}

	if _, err := s.projects.FindByID(ctx, req.ProjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	now := time.Now().UTC()
	enquiry := &models.Enquiry{
		ID:          uuid.NewString(),
		ApplicantID: applicantID,
		ProjectID:   req.ProjectID,
		Content:     req.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, enquiry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enquiry")
	}
	return enquiry, nil
}

// Update edits the content of an enquiry that has not been replied to yet.
func (s *EnquiryService) Update(ctx context.Context, applicantID, id string, req UpdateEnquiryRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enquiry payload")
	}

	enquiry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if enquiry.ApplicantID != applicantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enquiry belongs to another applicant")
	}
	if enquiry.Reply != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enquiry has already been replied to")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateContent(ctx, id, req.Content, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enquiry")
	}
	enquiry.Content = req.Content
	enquiry.UpdatedAt = now
	return enquiry, nil
}

// Delete removes an unreplied enquiry owned by the applicant.
func (s *EnquiryService) Delete(ctx context.Context, applicantID, id string) error {
	enquiry, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if enquiry.ApplicantID != applicantID {
		return appErrors.Clone(appErrors.ErrForbidden, "enquiry belongs to another applicant")
	}
	if enquiry.Reply != nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "enquiry has already been replied to")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enquiry")
	}
	return nil
}

// Reply attaches a single staff reply. Only officers on the project roster or
// the managing user may reply, and each enquiry takes exactly one reply.
func (s *EnquiryService) Reply(ctx context.Context, actor *models.JWTClaims, id string, req ReplyEnquiryRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}

	enquiry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if enquiry.Reply != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enquiry has already been replied to")
	}

	allowed, err := s.canReply(ctx, actor, enquiry.ProjectID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only handling officers or the managing user may reply")
	}

	now := time.Now().UTC()
	if err := s.repo.SetReply(ctx, id, req.Reply, actor.UserID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reply")
	}
	enquiry.Reply = &req.Reply
	enquiry.RepliedBy = &actor.UserID
	enquiry.RepliedAt = &now
	enquiry.UpdatedAt = now
	return enquiry, nil
}

func (s *EnquiryService) canReply(ctx context.Context, actor *models.JWTClaims, projectID string) (bool, error) {
	switch actor.Role {
	case models.RoleManager:
		project, err := s.projects.FindByID(ctx, projectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, appErrors.Clone(appErrors.ErrNotFound, "project not found")
			}
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
		}
		return project.ManagerID == actor.UserID, nil
	case models.RoleOfficer:
		onRoster, err := s.projects.IsOfficer(ctx, projectID, actor.UserID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster")
		}
		return onRoster, nil
	default:
		return false, nil
	}
}

func (s *EnquiryService) find(ctx context.Context, id string) (*models.Enquiry, error) {
	enquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch enquiry")
	}
	return enquiry, nil
}
