package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bto-allocation-api/internal/models"
)

// ProjectRepository manages projects, their unit inventory and the approved
// officer roster.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs a ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns project details matching the provided filters.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error) {
	base := "FROM projects p"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Neighborhood != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(p.neighborhood) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Neighborhood))
	}
	if filter.ManagerID != "" {
		conditions = append(conditions, fmt.Sprintf("p.manager_id = $%d", len(args)+1))
		args = append(args, filter.ManagerID)
	}
	if filter.VisibleOnly {
		conditions = append(conditions, "p.visible = TRUE")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"name":       "p.name",
		"open_date":  "p.open_date",
		"close_date": "p.close_date",
		"created_at": "p.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "p.open_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.name, p.neighborhood, p.open_date, p.close_date, p.manager_id, p.officer_slots, p.visible, p.created_at, p.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	details := make([]models.ProjectDetail, 0, len(projects))
	for _, project := range projects {
		detail, err := r.hydrate(ctx, project)
		if err != nil {
			return nil, 0, err
		}
		details = append(details, *detail)
	}
	return details, total, nil
}

// FindByID fetches a bare project by ID.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	const query = `SELECT id, name, neighborhood, open_date, close_date, manager_id, officer_slots, visible, created_at, updated_at
        FROM projects WHERE id = $1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindDetailByID fetches a project with its inventory and roster.
func (r *ProjectRepository) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	project, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, *project)
}

// ListByManager returns all projects a manager is responsible for.
func (r *ProjectRepository) ListByManager(ctx context.Context, managerID string) ([]models.Project, error) {
	const query = `SELECT id, name, neighborhood, open_date, close_date, manager_id, officer_slots, visible, created_at, updated_at
        FROM projects WHERE manager_id = $1 ORDER BY open_date`
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, managerID); err != nil {
		return nil, fmt.Errorf("list projects by manager: %w", err)
	}
	return projects, nil
}

// Create inserts a project and its unit inventory in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, units []models.ProjectUnit) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const projectQuery = `INSERT INTO projects (id, name, neighborhood, open_date, close_date, manager_id, officer_slots, visible, created_at, updated_at)
        VALUES (:id, :name, :neighborhood, :open_date, :close_date, :manager_id, :officer_slots, :visible, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, projectQuery, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	const unitQuery = `INSERT INTO project_units (project_id, unit_type, total_units, remaining_units)
        VALUES (:project_id, :unit_type, :total_units, :remaining_units)`
	for i := range units {
		units[i].ProjectID = project.ID
		if _, err := tx.NamedExecContext(ctx, unitQuery, units[i]); err != nil {
			return fmt.Errorf("create project unit %s: %w", units[i].UnitType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create project: %w", err)
	}
	return nil
}

// Update rewrites the mutable project columns.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	const query = `UPDATE projects SET name = :name, neighborhood = :neighborhood, open_date = :open_date,
        close_date = :close_date, officer_slots = :officer_slots, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetVisibility toggles the listing flag.
func (r *ProjectRepository) SetVisibility(ctx context.Context, id string, visible bool, updatedAt time.Time) error {
	const query = `UPDATE projects SET visible = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, visible, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set project visibility: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a project along with its inventory and roster rows.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete project: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_officers WHERE project_id = $1`, id); err != nil {
		return fmt.Errorf("delete project roster: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_units WHERE project_id = $1`, id); err != nil {
		return fmt.Errorf("delete project units: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete project: %w", err)
	}
	return nil
}

// FindUnit fetches one inventory row.
func (r *ProjectRepository) FindUnit(ctx context.Context, projectID string, unitType models.UnitType) (*models.ProjectUnit, error) {
	const query = `SELECT project_id, unit_type, total_units, remaining_units
        FROM project_units WHERE project_id = $1 AND unit_type = $2`
	var unit models.ProjectUnit
	if err := r.db.GetContext(ctx, &unit, query, projectID, unitType); err != nil {
		return nil, err
	}
	return &unit, nil
}

// DecrementUnit atomically takes one unit off the inventory. Returns false
// when no row has remaining stock, leaving the count untouched.
func (r *ProjectRepository) DecrementUnit(ctx context.Context, projectID string, unitType models.UnitType) (bool, error) {
	const query = `UPDATE project_units SET remaining_units = remaining_units - 1
        WHERE project_id = $1 AND unit_type = $2 AND remaining_units > 0`
	result, err := r.db.ExecContext(ctx, query, projectID, unitType)
	if err != nil {
		return false, fmt.Errorf("decrement unit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement unit rows: %w", err)
	}
	return rows > 0, nil
}

// IncrementUnit returns one unit to the inventory, never exceeding the total.
// Returns false when the row is already at capacity.
func (r *ProjectRepository) IncrementUnit(ctx context.Context, projectID string, unitType models.UnitType) (bool, error) {
	const query = `UPDATE project_units SET remaining_units = remaining_units + 1
        WHERE project_id = $1 AND unit_type = $2 AND remaining_units < total_units`
	result, err := r.db.ExecContext(ctx, query, projectID, unitType)
	if err != nil {
		return false, fmt.Errorf("increment unit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment unit rows: %w", err)
	}
	return rows > 0, nil
}

// CountOfficers returns the current approved roster size.
func (r *ProjectRepository) CountOfficers(ctx context.Context, projectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM project_officers WHERE project_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, projectID); err != nil {
		return 0, fmt.Errorf("count officers: %w", err)
	}
	return count, nil
}

// AddOfficer appends an officer to the roster.
func (r *ProjectRepository) AddOfficer(ctx context.Context, projectID, officerID string) error {
	const query = `INSERT INTO project_officers (project_id, officer_id, added_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, projectID, officerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add officer: %w", err)
	}
	return nil
}

// RemoveOfficer drops an officer from the roster.
func (r *ProjectRepository) RemoveOfficer(ctx context.Context, projectID, officerID string) error {
	const query = `DELETE FROM project_officers WHERE project_id = $1 AND officer_id = $2`
	if _, err := r.db.ExecContext(ctx, query, projectID, officerID); err != nil {
		return fmt.Errorf("remove officer: %w", err)
	}
	return nil
}

// IsOfficer reports whether the officer sits on the project roster.
func (r *ProjectRepository) IsOfficer(ctx context.Context, projectID, officerID string) (bool, error) {
	const query = `SELECT 1 FROM project_officers WHERE project_id = $1 AND officer_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, projectID, officerID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roster: %w", err)
	}
	return true, nil
}

func (r *ProjectRepository) hydrate(ctx context.Context, project models.Project) (*models.ProjectDetail, error) {
	const unitQuery = `SELECT project_id, unit_type, total_units, remaining_units
        FROM project_units WHERE project_id = $1 ORDER BY unit_type`
	var units []models.ProjectUnit
	if err := r.db.SelectContext(ctx, &units, unitQuery, project.ID); err != nil {
		return nil, fmt.Errorf("load project units: %w", err)
	}

	const rosterQuery = `SELECT officer_id FROM project_officers WHERE project_id = $1 ORDER BY added_at`
	var officers []string
	if err := r.db.SelectContext(ctx, &officers, rosterQuery, project.ID); err != nil {
		return nil, fmt.Errorf("load project roster: %w", err)
	}

	return &models.ProjectDetail{Project: project, Units: units, Officers: officers}, nil
}
