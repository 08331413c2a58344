package service

import (
	"time"

	"github.com/noah-isme/bto-allocation-api/internal/models"
)

// Eligibility rules are pure predicates over the collections supplied by the
// caller. They never touch the store, so lifecycle services stay the single
// place where reads and writes are sequenced.

// CanApply reports whether the applicant may apply to the project at all.
// Managers never apply. Singles must be 35 or older and the project must
// offer two-room units; married applicants must be 21 or older and the
// project must offer at least one unit type.
func CanApply(applicant *models.User, project *models.ProjectDetail) bool {
	if applicant == nil || project == nil {
		return false
	}
	if applicant.Role == models.RoleManager {
		return false
	}
	switch applicant.MaritalStatus {
	case models.MaritalSingle:
		return applicant.Age >= 35 && project.OffersUnitType(models.UnitTwoRoom)
	case models.MaritalMarried:
		return applicant.Age >= 21 && offersAnyUnit(project)
	}
	return false
}

// CanOfficerRegister reports whether the officer may request to administer
// the project. officerRegs and officerApps are the officer's own
// registrations (with project windows) and applications across all projects.
func CanOfficerRegister(officer *models.User, project *models.Project, officerRegs []models.RegistrationDetail, officerApps []models.Application) bool {
	if officer == nil || project == nil {
		return false
	}
	for _, reg := range officerRegs {
		if reg.OfficerID != officer.ID {
			continue
		}
		if reg.ProjectID == project.ID {
			// Any prior record, regardless of status, blocks a new request.
			return false
		}
		if reg.Status == models.RegistrationRejected {
			continue
		}
		if project.OverlapsWindow(reg.ProjectOpenDate, reg.ProjectCloseDate) {
			return false
		}
	}
	for _, app := range officerApps {
		if app.ApplicantID == officer.ID && app.ProjectID == project.ID {
			return false
		}
	}
	return true
}

// CanManagerHandle reports whether the manager may take on a project whose
// application window is [open, close]. A manager handles at most one project
// per overlapping window; excludeID skips the project being edited.
func CanManagerHandle(manager *models.User, open, close time.Time, projects []models.Project, excludeID string) bool {
	if manager == nil || open.After(close) {
		return false
	}
	for _, p := range projects {
		if p.ManagerID != manager.ID || p.ID == excludeID {
			continue
		}
		if p.OverlapsWindow(open, close) {
			return false
		}
	}
	return true
}

func offersAnyUnit(project *models.ProjectDetail) bool {
	for _, u := range project.Units {
		if u.TotalUnits > 0 {
			return true
		}
	}
	return false
}
