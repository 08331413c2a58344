package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type fakeUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) FindByNRIC(ctx context.Context, nric string) (*models.User, error) {
	for _, u := range f.users {
		if u.NRIC == nric {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

func TestCreateUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), "m1", CreateUserRequest{
		NRIC:          "S1234567A",
		Password:      "password-123",
		FullName:      "Tan Wei Ming",
		Age:           30,
		MaritalStatus: models.MaritalMarried,
		Role:          models.RoleApplicant,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password-123")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestCreateUserDuplicateNRIC(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", NRIC: "S1234567A", Role: models.RoleApplicant}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), "m1", CreateUserRequest{
		NRIC:          "S1234567A",
		Password:      "password-123",
		FullName:      "Tan Wei Ming",
		Age:           30,
		MaritalStatus: models.MaritalMarried,
		Role:          models.RoleApplicant,
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCreateUserInvalidPayload(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), nil, nil)

	_, err := svc.Create(context.Background(), "m1", CreateUserRequest{
		NRIC:          "S1234567A",
		Password:      "short",
		FullName:      "Tan Wei Ming",
		Age:           30,
		MaritalStatus: models.MaritalMarried,
		Role:          models.RoleApplicant,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), "m1", CreateUserRequest{
		NRIC:          "S1234567A",
		Password:      "password-123",
		FullName:      "Tan Wei Ming",
		Age:           17,
		MaritalStatus: models.MaritalMarried,
		Role:          models.RoleApplicant,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGetUserNotFound(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestListUsersByRole(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", NRIC: "S1", Role: models.RoleApplicant}
	repo.users["u2"] = &models.User{ID: "u2", NRIC: "S2", Role: models.RoleOfficer}
	svc := NewUserService(repo, nil, nil)

	role := models.RoleOfficer
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}
