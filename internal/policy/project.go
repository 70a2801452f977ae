package policy

import "taskflow/internal/model"

func CanCreateProject(p model.Principal) bool {
	return p.Role.IsAdmin()
}

func CanUpdateProject(p model.Principal, project *model.Project) bool {
	return CanAccess(p, project.CompanyID, project.CreatedBy) && p.Role.IsAdmin()
}

// CanDeleteProject follows the update rule. Deleting a project also removes its tasks.
func CanDeleteProject(p model.Principal, project *model.Project) bool {
	return CanUpdateProject(p, project)
}
