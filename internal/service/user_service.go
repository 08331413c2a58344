package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByNRIC(ctx context.Context, nric string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest provisions a new account.
type CreateUserRequest struct {
	NRIC          string               `json:"nric" validate:"required"`
	Password      string               `json:"password" validate:"required,min=8"`
	FullName      string               `json:"full_name" validate:"required"`
	Age           int                  `json:"age" validate:"required,min=18,max=130"`
	MaritalStatus models.MaritalStatus `json:"marital_status" validate:"required,oneof=SINGLE MARRIED"`
	Role          models.UserRole      `json:"role" validate:"required,oneof=APPLICANT OFFICER MANAGER"`
}

// UserService provides account provisioning and lookup.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

// Create provisions an account with a fixed role.
func (s *UserService) Create(ctx context.Context, createdBy string, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	if existing, err := s.repo.FindByNRIC(ctx, req.NRIC); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "nric is already registered")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check nric")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:            uuid.NewString(),
		NRIC:          req.NRIC,
		PasswordHash:  string(hash),
		FullName:      req.FullName,
		Age:           req.Age,
		MaritalStatus: req.MaritalStatus,
		Role:          req.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &createdBy,
		Action:     models.AuditActionUserCreate,
		Resource:   "user",
		ResourceID: &user.ID,
	}); err != nil {
		s.logger.Warn("failed to record user creation audit log", zap.Error(err))
	}

	s.logger.Info("user provisioned",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return user, nil
}
