package models

import "time"

// UnitType identifies a flat category offered by a project.
type UnitType string

const (
	UnitTwoRoom   UnitType = "TWO_ROOM"
	UnitThreeRoom UnitType = "THREE_ROOM"
)

// ValidUnitType reports whether the given value is a known unit type.
func ValidUnitType(t UnitType) bool {
	return t == UnitTwoRoom || t == UnitThreeRoom
}

// Project represents a BTO launch stored in the projects table.
type Project struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Neighborhood string    `db:"neighborhood" json:"neighborhood"`
	OpenDate     time.Time `db:"open_date" json:"open_date"`
	CloseDate    time.Time `db:"close_date" json:"close_date"`
	ManagerID    string    `db:"manager_id" json:"manager_id"`
	OfficerSlots int       `db:"officer_slots" json:"officer_slots"`
	Visible      bool      `db:"visible" json:"visible"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectUnit tracks inventory for one unit type of a project.
// remaining_units never exceeds total_units and never goes below zero.
type ProjectUnit struct {
	ProjectID      string   `db:"project_id" json:"project_id"`
	UnitType       UnitType `db:"unit_type" json:"unit_type"`
	TotalUnits     int      `db:"total_units" json:"total_units"`
	RemainingUnits int      `db:"remaining_units" json:"remaining_units"`
}

// ProjectDetail aggregates a project with its inventory and approved roster.
type ProjectDetail struct {
	Project
	Units    []ProjectUnit `json:"units"`
	Officers []string      `json:"officers"`
}

// OffersUnitType reports whether the detail carries inventory rows for the type.
func (d *ProjectDetail) OffersUnitType(t UnitType) bool {
	for _, u := range d.Units {
		if u.UnitType == t && u.TotalUnits > 0 {
			return true
		}
	}
	return false
}

// OverlapsWindow reports whether the project's application window intersects
// [open, close]. Bounds are inclusive on both sides.
func (p *Project) OverlapsWindow(open, close time.Time) bool {
	return !p.OpenDate.After(close) && !open.After(p.CloseDate)
}

// ProjectFilter captures listing criteria for projects.
type ProjectFilter struct {
	Neighborhood string
	ManagerID    string
	VisibleOnly  bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
