package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type fakeInventoryRepo struct {
	units  map[string]*models.ProjectUnit
	roster map[string][]string
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{units: make(map[string]*models.ProjectUnit), roster: make(map[string][]string)}
}

func unitKey(projectID string, unitType models.UnitType) string {
	return projectID + ":" + string(unitType)
}

func (f *fakeInventoryRepo) FindUnit(ctx context.Context, projectID string, unitType models.UnitType) (*models.ProjectUnit, error) {
	unit, ok := f.units[unitKey(projectID, unitType)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return unit, nil
}

func (f *fakeInventoryRepo) DecrementUnit(ctx context.Context, projectID string, unitType models.UnitType) (bool, error) {
	unit, ok := f.units[unitKey(projectID, unitType)]
	if !ok || unit.RemainingUnits <= 0 {
		return false, nil
	}
	unit.RemainingUnits--
	return true, nil
}

func (f *fakeInventoryRepo) IncrementUnit(ctx context.Context, projectID string, unitType models.UnitType) (bool, error) {
	unit, ok := f.units[unitKey(projectID, unitType)]
	if !ok || unit.RemainingUnits >= unit.TotalUnits {
		return false, nil
	}
	unit.RemainingUnits++
	return true, nil
}

func (f *fakeInventoryRepo) CountOfficers(ctx context.Context, projectID string) (int, error) {
	return len(f.roster[projectID]), nil
}

func (f *fakeInventoryRepo) AddOfficer(ctx context.Context, projectID, officerID string) error {
	f.roster[projectID] = append(f.roster[projectID], officerID)
	return nil
}

func (f *fakeInventoryRepo) RemoveOfficer(ctx context.Context, projectID, officerID string) error {
	kept := f.roster[projectID][:0]
	for _, id := range f.roster[projectID] {
		if id != officerID {
			kept = append(kept, id)
		}
	}
	f.roster[projectID] = kept
	return nil
}

func (f *fakeInventoryRepo) IsOfficer(ctx context.Context, projectID, officerID string) (bool, error) {
	for _, id := range f.roster[projectID] {
		if id == officerID {
			return true, nil
		}
	}
	return false, nil
}

func TestReserveUnitUntilExhausted(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.units["p1:TWO_ROOM"] = &models.ProjectUnit{ProjectID: "p1", UnitType: models.UnitTwoRoom, TotalUnits: 2, RemainingUnits: 2}
	svc := NewInventoryService(repo, nil)

	require.NoError(t, svc.ReserveUnit(context.Background(), "p1", models.UnitTwoRoom))
	require.NoError(t, svc.ReserveUnit(context.Background(), "p1", models.UnitTwoRoom))

	err := svc.ReserveUnit(context.Background(), "p1", models.UnitTwoRoom)
	assert.ErrorIs(t, err, appErrors.ErrUnitUnavailable)
	assert.Equal(t, 0, repo.units["p1:TWO_ROOM"].RemainingUnits)
}

func TestReserveUnitUnknownType(t *testing.T) {
	svc := NewInventoryService(newFakeInventoryRepo(), nil)

	err := svc.ReserveUnit(context.Background(), "p1", models.UnitThreeRoom)
	assert.ErrorIs(t, err, appErrors.ErrUnitUnavailable)
}

func TestReleaseUnitCappedAtTotal(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.units["p1:TWO_ROOM"] = &models.ProjectUnit{ProjectID: "p1", UnitType: models.UnitTwoRoom, TotalUnits: 2, RemainingUnits: 1}
	svc := NewInventoryService(repo, nil)

	require.NoError(t, svc.ReleaseUnit(context.Background(), "p1", models.UnitTwoRoom))
	assert.Equal(t, 2, repo.units["p1:TWO_ROOM"].RemainingUnits)

	// Already at total; the release is a no-op rather than an error.
	require.NoError(t, svc.ReleaseUnit(context.Background(), "p1", models.UnitTwoRoom))
	assert.Equal(t, 2, repo.units["p1:TWO_ROOM"].RemainingUnits)
}

func TestAddOfficerRespectsSlots(t *testing.T) {
	repo := newFakeInventoryRepo()
	svc := NewInventoryService(repo, nil)
	project := &models.Project{ID: "p1", OfficerSlots: 2}

	require.NoError(t, svc.AddOfficer(context.Background(), project, "o1"))
	require.NoError(t, svc.AddOfficer(context.Background(), project, "o2"))

	err := svc.AddOfficer(context.Background(), project, "o3")
	assert.ErrorIs(t, err, appErrors.ErrSlotsFull)

	onRoster, err := svc.IsOfficer(context.Background(), "p1", "o1")
	require.NoError(t, err)
	assert.True(t, onRoster)
}

func TestRemoveOfficerFreesSlot(t *testing.T) {
	repo := newFakeInventoryRepo()
	svc := NewInventoryService(repo, nil)
	project := &models.Project{ID: "p1", OfficerSlots: 1}

	require.NoError(t, svc.AddOfficer(context.Background(), project, "o1"))
	require.ErrorIs(t, svc.AddOfficer(context.Background(), project, "o2"), appErrors.ErrSlotsFull)

	require.NoError(t, svc.RemoveOfficer(context.Background(), "p1", "o1"))
	assert.NoError(t, svc.AddOfficer(context.Background(), project, "o2"))
}

func TestRemainingUnitsNotOffered(t *testing.T) {
	svc := NewInventoryService(newFakeInventoryRepo(), nil)

	_, err := svc.RemainingUnits(context.Background(), "p1", models.UnitThreeRoom)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
