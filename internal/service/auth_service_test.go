package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type fakeAuthRepo struct {
	users         map[string]*models.User
	tokens        map[string]*models.RefreshToken
	revoked       []string
	revokedAllFor []string
	passwords     map[string]string
	auditLogs     []*models.AuditLog
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:     make(map[string]*models.User),
		tokens:    make(map[string]*models.RefreshToken),
		passwords: make(map[string]string),
	}
}

func (f *fakeAuthRepo) FindByNRIC(ctx context.Context, nric string) (*models.User, error) {
	for _, user := range f.users {
		if user.NRIC == nric {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	user, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.LastLogin = &ts
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	user, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	f.passwords[id] = passwordHash
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.revokedAllFor = append(f.revokedAllFor, userID)
	for _, token := range f.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	copied := *token
	f.tokens[token.Token] = &copied
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (f *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range f.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "bto-allocation-api",
	}
}

func seedAuthUser(repo *fakeAuthRepo, password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:            "u1",
		NRIC:          "S1234567A",
		PasswordHash:  string(hash),
		FullName:      "Tan Wei Ming",
		Age:           30,
		MaritalStatus: models.MaritalMarried,
		Role:          models.RoleApplicant,
	}
	repo.users[user.ID] = user
	return user
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeAuthRepo()
	seedAuthUser(repo, "correct-horse")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{NRIC: "S1234567A", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Contains(t, repo.tokens, resp.RefreshToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleApplicant, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeAuthRepo()
	seedAuthUser(repo, "correct-horse")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{NRIC: "S1234567A", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnknownNRIC(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{NRIC: "S9999999Z", Password: "whatever"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newFakeAuthRepo()
	seedAuthUser(repo, "correct-horse")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{NRIC: "S1234567A", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)

	// The old token cannot be replayed after rotation.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestRefreshTokenExpired(t *testing.T) {
	repo := newFakeAuthRepo()
	seedAuthUser(repo, "correct-horse")
	repo.tokens["stale"] = &models.RefreshToken{ID: "t1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestLogoutForeignToken(t *testing.T) {
	repo := newFakeAuthRepo()
	repo.tokens["other"] = &models.RefreshToken{ID: "t1", UserID: "u2", Token: "other", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err := svc.Logout(context.Background(), "other", "u1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.Logout(context.Background(), "other", "u2")
	require.NoError(t, err)
	assert.True(t, repo.tokens["other"].Revoked)
}

func TestChangePassword(t *testing.T) {
	repo := newFakeAuthRepo()
	seedAuthUser(repo, "correct-horse")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-password-1"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "correct-horse", NewPassword: "new-password-1"})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAllFor, "u1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("new-password-1")))
}

func TestValidateTokenWrongSecret(t *testing.T) {
	repo := newFakeAuthRepo()
	seedAuthUser(repo, "correct-horse")
	issuer := NewAuthService(repo, nil, nil, testAuthConfig())

	login, err := issuer.Login(context.Background(), models.LoginRequest{NRIC: "S1234567A", Password: "correct-horse"})
	require.NoError(t, err)

	other := testAuthConfig()
	other.AccessTokenSecret = "different-secret"
	verifier := NewAuthService(repo, nil, nil, other)

	_, err = verifier.ValidateToken(login.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
