package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/bto-allocation-api/internal/models"
	appErrors "github.com/noah-isme/bto-allocation-api/pkg/errors"
)

type inventoryRepository interface {
	FindUnit(ctx context.Context, projectID string, unitType models.UnitType) (*models.ProjectUnit, error)
	DecrementUnit(ctx context.Context, projectID string, unitType models.UnitType) (bool, error)
	IncrementUnit(ctx context.Context, projectID string, unitType models.UnitType) (bool, error)
	CountOfficers(ctx context.Context, projectID string) (int, error)
	AddOfficer(ctx context.Context, projectID, officerID string) error
	RemoveOfficer(ctx context.Context, projectID, officerID string) error
	IsOfficer(ctx context.Context, projectID, officerID string) (bool, error)
}

// InventoryService owns per-project unit counts and the approved officer
// roster. All mutations pass through here so the capacity invariants hold
// under concurrent callers.
type InventoryService struct {
	repo   inventoryRepository
	locks  *keyedMutex
	logger *zap.Logger
}

// NewInventoryService constructs InventoryService.
func NewInventoryService(repo inventoryRepository, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{repo: repo, locks: newKeyedMutex(), logger: logger}
}

// ReserveUnit takes one remaining unit of the given type. The decrement is a
// conditional update that never drives the count below zero; a miss means the
// unit row is absent or exhausted.
func (s *InventoryService) ReserveUnit(ctx context.Context, projectID string, unitType models.UnitType) error {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	ok, err := s.repo.DecrementUnit(ctx, projectID, unitType)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve unit")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrUnitUnavailable, "")
	}
	return nil
}

// ReleaseUnit returns one unit of the given type to the pool. Used by the
// withdrawal reversal and by booking rollback. The increment is capped at the
// total count.
func (s *InventoryService) ReleaseUnit(ctx context.Context, projectID string, unitType models.UnitType) error {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	ok, err := s.repo.IncrementUnit(ctx, projectID, unitType)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release unit")
	}
	if !ok {
		s.logger.Warn("unit release found no row below total", zap.String("project_id", projectID), zap.String("unit_type", string(unitType)))
	}
	return nil
}

// RemainingUnits reports the current inventory row for the type.
func (s *InventoryService) RemainingUnits(ctx context.Context, projectID string, unitType models.UnitType) (*models.ProjectUnit, error) {
	unit, err := s.repo.FindUnit(ctx, projectID, unitType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit type not offered by project")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	return unit, nil
}

// AddOfficer appends the officer to the project roster iff a slot remains.
// The capacity check and the append run under the project lock so two
// concurrent approvals cannot exceed the cap.
func (s *InventoryService) AddOfficer(ctx context.Context, project *models.Project, officerID string) error {
	unlock := s.locks.Lock(project.ID)
	defer unlock()

	count, err := s.repo.CountOfficers(ctx, project.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count roster")
	}
	if count >= project.OfficerSlots {
		return appErrors.Clone(appErrors.ErrSlotsFull, "")
	}
	if err := s.repo.AddOfficer(ctx, project.ID, officerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add officer to roster")
	}
	return nil
}

// RemoveOfficer drops the officer from the roster if present.
func (s *InventoryService) RemoveOfficer(ctx context.Context, projectID, officerID string) error {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	if err := s.repo.RemoveOfficer(ctx, projectID, officerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove officer from roster")
	}
	return nil
}

// IsOfficer reports whether the officer is on the project's approved roster.
func (s *InventoryService) IsOfficer(ctx context.Context, projectID, officerID string) (bool, error) {
	ok, err := s.repo.IsOfficer(ctx, projectID, officerID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster")
	}
	return ok, nil
}
