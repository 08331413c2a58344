package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type fakeRegistrationRepo struct {
	registrations  map[string]*models.OfficerRegistration
	officerDetails []models.RegistrationDetail
	created        *models.OfficerRegistration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{registrations: make(map[string]*models.OfficerRegistration)}
}

func (f *fakeRegistrationRepo) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	details := make([]models.RegistrationDetail, 0, len(f.registrations))
	for _, reg := range f.registrations {
		details = append(details, models.RegistrationDetail{OfficerRegistration: *reg})
	}
	return details, len(details), nil
}

func (f *fakeRegistrationRepo) FindByID(ctx context.Context, id string) (*models.OfficerRegistration, error) {
	reg, ok := f.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reg
	return &copied, nil
}

func (f *fakeRegistrationRepo) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	reg, ok := f.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.RegistrationDetail{OfficerRegistration: *reg}, nil
}

func (f *fakeRegistrationRepo) FindByOfficerAndProject(ctx context.Context, officerID, projectID string) (*models.OfficerRegistration, error) {
	for _, reg := range f.registrations {
		if reg.OfficerID == officerID && reg.ProjectID == projectID {
			return reg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRegistrationRepo) ListDetailsByOfficer(ctx context.Context, officerID string) ([]models.RegistrationDetail, error) {
	var details []models.RegistrationDetail
	for _, d := range f.officerDetails {
		if d.OfficerID == officerID {
			details = append(details, d)
		}
	}
	return details, nil
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, registration *models.OfficerRegistration) error {
	copied := *registration
	f.registrations[registration.ID] = &copied
	f.created = &copied
	return nil
}

func (f *fakeRegistrationRepo) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, updatedAt time.Time) error {
	reg, ok := f.registrations[id]
	if !ok {
		return sql.ErrNoRows
	}
	reg.Status = status
	reg.UpdatedAt = updatedAt
	return nil
}

func officerUser(id string) *models.User {
	return &models.User{ID: id, FullName: "Lim Jia Hui", Age: 28, MaritalStatus: models.MaritalMarried, Role: models.RoleOfficer}
}

func newRegistrationService(repo *fakeRegistrationRepo, users *fakeUserReader, projects *fakeProjectReader, applications *fakeApplicationRepo, roster *fakeInventory) *RegistrationService {
	return NewRegistrationService(repo, users, projects, applications, roster, nil)
}

func TestRequestRegistrationSuccess(t *testing.T) {
	repo := newFakeRegistrationRepo()
	users := &fakeUserReader{users: map[string]*models.User{"o1": officerUser("o1")}}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	svc := newRegistrationService(repo, users, projects, newFakeApplicationRepo(), newFakeInventory())

	detail, err := svc.Request(context.Background(), "o1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, detail.Status)
	require.NotNil(t, repo.created)
	assert.Equal(t, "o1", repo.created.OfficerID)
}

func TestRequestRegistrationAlreadyExists(t *testing.T) {
	repo := newFakeRegistrationRepo()
	repo.registrations["r1"] = &models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationRejected}
	users := &fakeUserReader{users: map[string]*models.User{"o1": officerUser("o1")}}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	svc := newRegistrationService(repo, users, projects, newFakeApplicationRepo(), newFakeInventory())

	_, err := svc.Request(context.Background(), "o1", "p1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyRegistered)
}

func TestRequestRegistrationNonOfficer(t *testing.T) {
	users := &fakeUserReader{users: map[string]*models.User{"a1": marriedApplicant("a1")}}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	svc := newRegistrationService(newFakeRegistrationRepo(), users, projects, newFakeApplicationRepo(), newFakeInventory())

	_, err := svc.Request(context.Background(), "a1", "p1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRequestRegistrationOverlappingWindow(t *testing.T) {
	target := openProject("p2", "m1")
	repo := newFakeRegistrationRepo()
	repo.officerDetails = []models.RegistrationDetail{{
		OfficerRegistration: models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationApproved},
		ProjectOpenDate:     target.OpenDate,
		ProjectCloseDate:    target.CloseDate,
	}}
	users := &fakeUserReader{users: map[string]*models.User{"o1": officerUser("o1")}}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p2": target}}
	svc := newRegistrationService(repo, users, projects, newFakeApplicationRepo(), newFakeInventory())

	_, err := svc.Request(context.Background(), "o1", "p2")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
}

func TestRequestRegistrationAppliedToProject(t *testing.T) {
	repo := newFakeRegistrationRepo()
	applications := newFakeApplicationRepo()
	applications.applications["app1"] = &models.Application{ID: "app1", ApplicantID: "o1", ProjectID: "p1", Status: models.ApplicationUnsuccessful}
	users := &fakeUserReader{users: map[string]*models.User{"o1": officerUser("o1")}}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	svc := newRegistrationService(repo, users, projects, applications, newFakeInventory())

	_, err := svc.Request(context.Background(), "o1", "p1")
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
}

func TestReviewRegistrationApprove(t *testing.T) {
	repo := newFakeRegistrationRepo()
	repo.registrations["r1"] = &models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationPending}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	roster := newFakeInventory()
	svc := newRegistrationService(repo, &fakeUserReader{}, projects, newFakeApplicationRepo(), roster)

	detail, err := svc.Review(context.Background(), "m1", "r1", true)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, detail.Status)
	assert.True(t, roster.roster["p1:o1"])
}

func TestReviewRegistrationReject(t *testing.T) {
	repo := newFakeRegistrationRepo()
	repo.registrations["r1"] = &models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationPending}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	roster := newFakeInventory()
	svc := newRegistrationService(repo, &fakeUserReader{}, projects, newFakeApplicationRepo(), roster)

	detail, err := svc.Review(context.Background(), "m1", "r1", false)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, detail.Status)
	assert.False(t, roster.roster["p1:o1"])
}

func TestReviewRegistrationSlotsFullAutoRejects(t *testing.T) {
	repo := newFakeRegistrationRepo()
	repo.registrations["r1"] = &models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationPending}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	roster := newFakeInventory()
	roster.addErr = appErrors.Clone(appErrors.ErrSlotsFull, "")
	svc := newRegistrationService(repo, &fakeUserReader{}, projects, newFakeApplicationRepo(), roster)

	_, err := svc.Review(context.Background(), "m1", "r1", true)
	assert.ErrorIs(t, err, appErrors.ErrSlotsFull)
	assert.Equal(t, models.RegistrationRejected, repo.registrations["r1"].Status)
}

func TestReviewRegistrationWrongManager(t *testing.T) {
	repo := newFakeRegistrationRepo()
	repo.registrations["r1"] = &models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationPending}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	svc := newRegistrationService(repo, &fakeUserReader{}, projects, newFakeApplicationRepo(), newFakeInventory())

	_, err := svc.Review(context.Background(), "m2", "r1", true)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Equal(t, models.RegistrationPending, repo.registrations["r1"].Status)
}

func TestReviewRegistrationNotPending(t *testing.T) {
	repo := newFakeRegistrationRepo()
	repo.registrations["r1"] = &models.OfficerRegistration{ID: "r1", OfficerID: "o1", ProjectID: "p1", Status: models.RegistrationApproved}
	projects := &fakeProjectReader{projects: map[string]*models.ProjectDetail{"p1": openProject("p1", "m1")}}
	svc := newRegistrationService(repo, &fakeUserReader{}, projects, newFakeApplicationRepo(), newFakeInventory())

	_, err := svc.Review(context.Background(), "m1", "r1", true)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}
