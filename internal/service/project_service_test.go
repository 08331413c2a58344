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

type fakeProjectRepo struct {
	projects map[string]*models.ProjectDetail
	units    map[string][]models.ProjectUnit
	deleted  []string
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{
		projects: make(map[string]*models.ProjectDetail),
		units:    make(map[string][]models.ProjectUnit),
	}
}

func (f *fakeProjectRepo) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error) {
	var details []models.ProjectDetail
	for _, p := range f.projects {
		if filter.VisibleOnly && !p.Visible {
			continue
		}
		details = append(details, *p)
	}
	return details, len(details), nil
}

func (f *fakeProjectRepo) FindByID(ctx context.Context, id string) (*models.Project, error) {
	detail, ok := f.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := detail.Project
	return &copied, nil
}

func (f *fakeProjectRepo) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	detail, ok := f.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

func (f *fakeProjectRepo) ListByManager(ctx context.Context, managerID string) ([]models.Project, error) {
	var projects []models.Project
	for _, p := range f.projects {
		if p.ManagerID == managerID {
			projects = append(projects, p.Project)
		}
	}
	return projects, nil
}

func (f *fakeProjectRepo) Create(ctx context.Context, project *models.Project, units []models.ProjectUnit) error {
	f.projects[project.ID] = &models.ProjectDetail{Project: *project, Units: units}
	f.units[project.ID] = units
	return nil
}

func (f *fakeProjectRepo) Update(ctx context.Context, project *models.Project) error {
	detail, ok := f.projects[project.ID]
	if !ok {
		return sql.ErrNoRows
	}
	detail.Project = *project
	return nil
}

func (f *fakeProjectRepo) SetVisibility(ctx context.Context, id string, visible bool, updatedAt time.Time) error {
	detail, ok := f.projects[id]
	if !ok {
		return sql.ErrNoRows
	}
	detail.Visible = visible
	detail.UpdatedAt = updatedAt
	return nil
}

func (f *fakeProjectRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.projects, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func managerUser(id string) *models.User {
	return &models.User{ID: id, FullName: "Ong Li Ling", Age: 45, MaritalStatus: models.MaritalMarried, Role: models.RoleManager}
}

func validProjectRequest() CreateProjectRequest {
	now := time.Now().UTC()
	return CreateProjectRequest{
		Name:         "Riverside Grove",
		Neighborhood: "Punggol",
		OpenDate:     now,
		CloseDate:    now.Add(14 * 24 * time.Hour),
		OfficerSlots: 5,
		Units: []UnitAllocation{
			{UnitType: models.UnitTwoRoom, Total: 30},
			{UnitType: models.UnitThreeRoom, Total: 70},
		},
	}
}

func TestCreateProjectSuccess(t *testing.T) {
	repo := newFakeProjectRepo()
	users := &fakeUserReader{users: map[string]*models.User{"m1": managerUser("m1")}}
	svc := NewProjectService(repo, users, newFakeApplicationRepo(), nil, nil, nil)

	detail, err := svc.Create(context.Background(), "m1", validProjectRequest())
	require.NoError(t, err)
	assert.True(t, detail.Visible)
	assert.Equal(t, "m1", detail.ManagerID)
	require.Len(t, detail.Units, 2)
	assert.Equal(t, detail.Units[0].TotalUnits, detail.Units[0].RemainingUnits)
}

func TestCreateProjectOverlappingWindow(t *testing.T) {
	repo := newFakeProjectRepo()
	users := &fakeUserReader{users: map[string]*models.User{"m1": managerUser("m1")}}
	svc := NewProjectService(repo, users, newFakeApplicationRepo(), nil, nil, nil)

	_, err := svc.Create(context.Background(), "m1", validProjectRequest())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "m1", validProjectRequest())
	assert.ErrorIs(t, err, appErrors.ErrIneligible)
}

func TestCreateProjectInvertedDates(t *testing.T) {
	svc := NewProjectService(newFakeProjectRepo(), &fakeUserReader{}, newFakeApplicationRepo(), nil, nil, nil)

	req := validProjectRequest()
	req.OpenDate, req.CloseDate = req.CloseDate, req.OpenDate
	_, err := svc.Create(context.Background(), "m1", req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateProjectDuplicateUnitType(t *testing.T) {
	svc := NewProjectService(newFakeProjectRepo(), &fakeUserReader{}, newFakeApplicationRepo(), nil, nil, nil)

	req := validProjectRequest()
	req.Units = []UnitAllocation{
		{UnitType: models.UnitTwoRoom, Total: 30},
		{UnitType: models.UnitTwoRoom, Total: 10},
	}
	_, err := svc.Create(context.Background(), "m1", req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGetProjectHiddenFromApplicants(t *testing.T) {
	repo := newFakeProjectRepo()
	hidden := openProject("p1", "m1")
	hidden.Visible = false
	repo.projects["p1"] = hidden
	svc := NewProjectService(repo, &fakeUserReader{}, newFakeApplicationRepo(), nil, nil, nil)

	_, err := svc.Get(context.Background(), "p1", &models.JWTClaims{UserID: "a1", Role: models.RoleApplicant})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	detail, err := svc.Get(context.Background(), "p1", &models.JWTClaims{UserID: "o1", Role: models.RoleOfficer})
	require.NoError(t, err)
	assert.False(t, detail.Visible)
}

func TestListProjectsVisibilityByRole(t *testing.T) {
	repo := newFakeProjectRepo()
	visible := openProject("p1", "m1")
	hidden := openProject("p2", "m1")
	hidden.Visible = false
	repo.projects["p1"] = visible
	repo.projects["p2"] = hidden
	svc := NewProjectService(repo, &fakeUserReader{}, newFakeApplicationRepo(), nil, nil, nil)

	projects, _, err := svc.List(context.Background(), models.ProjectFilter{}, &models.JWTClaims{UserID: "a1", Role: models.RoleApplicant})
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	projects, _, err = svc.List(context.Background(), models.ProjectFilter{}, &models.JWTClaims{UserID: "m1", Role: models.RoleManager})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestDeleteProjectBlockedByApplications(t *testing.T) {
	repo := newFakeProjectRepo()
	repo.projects["p1"] = openProject("p1", "m1")
	applications := newFakeApplicationRepo()
	applications.applications["app1"] = &models.Application{ID: "app1", ApplicantID: "a1", ProjectID: "p1", Status: models.ApplicationPending}
	svc := NewProjectService(repo, &fakeUserReader{}, applications, nil, nil, nil)

	err := svc.Delete(context.Background(), "m1", "p1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	// Resolved applications no longer block deletion.
	applications.applications["app1"].Status = models.ApplicationUnsuccessful
	err = svc.Delete(context.Background(), "m1", "p1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "p1")
}

func TestDeleteProjectWrongManager(t *testing.T) {
	repo := newFakeProjectRepo()
	repo.projects["p1"] = openProject("p1", "m1")
	svc := NewProjectService(repo, &fakeUserReader{}, newFakeApplicationRepo(), nil, nil, nil)

	err := svc.Delete(context.Background(), "m2", "p1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSetVisibilityToggles(t *testing.T) {
	repo := newFakeProjectRepo()
	repo.projects["p1"] = openProject("p1", "m1")
	svc := NewProjectService(repo, &fakeUserReader{}, newFakeApplicationRepo(), nil, nil, nil)

	detail, err := svc.SetVisibility(context.Background(), "m1", "p1", false)
	require.NoError(t, err)
	assert.False(t, detail.Visible)
}
