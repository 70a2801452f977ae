package service

import (
	"context"
	"strings"

	"taskflow/internal/apperror"
	"taskflow/internal/model"
	"taskflow/internal/policy"
	"taskflow/internal/realtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ProjectService struct {
	projects  ProjectStore
	companies CompanyStore
	events    Publisher
	log       logrus.FieldLogger
}

func NewProjectService(projects ProjectStore, companies CompanyStore, events Publisher, log logrus.FieldLogger) *ProjectService {
	return &ProjectService{projects: projects, companies: companies, events: events, log: log}
}

type CreateProjectInput struct {
	Name        string
	Description string
	Status      string
	// CompanyID lets a system admin create a project for another company.
	CompanyID *uuid.UUID
}

type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *string
}

func (s *ProjectService) Create(ctx context.Context, p model.Principal, in CreateProjectInput) (*model.Project, error) {
	if err := decide(s.log, "project.create", p, policy.CanCreateProject(p), "Only admins can create projects"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.Validation("Project name is required")
	}
	status := model.ProjectActive
	if in.Status != "" {
		parsed, ok := model.ParseProjectStatus(in.Status)
		if !ok {
			return nil, apperror.Validation("Invalid project status")
		}
		status = parsed
	}

	companyID := p.CompanyID
	if in.CompanyID != nil && !model.SameCompany(in.CompanyID, p.CompanyID) {
		if !p.IsSystemAdmin() {
			return nil, decide(s.log, "project.create", p, false, "You can only create projects in your own company")
		}
		if _, err := s.companies.GetByID(ctx, *in.CompanyID); err != nil {
			if apperror.KindOf(err) == apperror.KindNotFound {
				return nil, apperror.Validation("Company does not exist")
			}
			return nil, storeErr("failed to load company", err)
		}
		companyID = in.CompanyID
	}

	project := &model.Project{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Name:        name,
		Description: in.Description,
		Status:      status,
		CreatedBy:   p.ID,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, storeErr("failed to create project", err)
	}

	s.publish(ctx, realtime.EventInsert, project.ID, project, nil, project)
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load project", err)
	}
	if err := check(s.log, "project.read", p, policy.Guard(p, project.CompanyID, project.CreatedBy)); err != nil {
		return nil, err
	}
	return project, nil
}

// List returns the projects in p's tenant. System admins may narrow to one company.
func (s *ProjectService) List(ctx context.Context, p model.Principal, status string, companyID *uuid.UUID) ([]model.Project, error) {
	scope := ScopeFor(p)
	if p.IsSystemAdmin() && companyID != nil {
		scope.All = false
		scope.CompanyID = companyID
	}

	var filter *model.ProjectStatus
	if status != "" {
		parsed, ok := model.ParseProjectStatus(status)
		if !ok {
			return nil, apperror.Validation("Invalid project status")
		}
		filter = &parsed
	}

	projects, err := s.projects.List(ctx, scope, filter)
	if err != nil {
		return nil, storeErr("failed to list projects", err)
	}
	return projects, nil
}

func (s *ProjectService) Update(ctx context.Context, p model.Principal, id uuid.UUID, patch ProjectPatch) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load project", err)
	}
	if err := check(s.log, "project.update", p, policy.Guard(p, project.CompanyID, project.CreatedBy)); err != nil {
		return nil, err
	}
	if err := decide(s.log, "project.update", p, policy.CanUpdateProject(p, project), "Only admins can edit projects"); err != nil {
		return nil, err
	}

	before := *project
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.Validation("Project name is required")
		}
		project.Name = name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.Status != nil {
		status, ok := model.ParseProjectStatus(*patch.Status)
		if !ok {
			return nil, apperror.Validation("Invalid project status")
		}
		project.Status = status
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, storeErr("failed to update project", err)
	}

	s.publish(ctx, realtime.EventUpdate, project.ID, project, &before, project)
	return project, nil
}

// Delete removes the project and hard-deletes its tasks. It returns the ids
// of the removed tasks.
func (s *ProjectService) Delete(ctx context.Context, p model.Principal, id uuid.UUID) ([]uuid.UUID, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load project", err)
	}
	if err := check(s.log, "project.delete", p, policy.Guard(p, project.CompanyID, project.CreatedBy)); err != nil {
		return nil, err
	}
	if err := decide(s.log, "project.delete", p, policy.CanDeleteProject(p, project), "Only admins can delete projects"); err != nil {
		return nil, err
	}

	taskIDs, err := s.projects.DeleteCascade(ctx, id)
	if err != nil {
		return nil, storeErr("failed to delete project", err)
	}

	s.log.WithFields(logrus.Fields{
		"project_id": id,
		"user_id":    p.ID,
		"tasks":      len(taskIDs),
	}).Info("Project deleted")

	s.publish(ctx, realtime.EventDelete, project.ID, project, project, nil)
	if s.events != nil {
		for _, taskID := range taskIDs {
			s.events.Publish(ctx, realtime.NewEvent(realtime.TableTasks, realtime.EventDelete, taskID, project.CompanyID, project.CreatedBy, nil, nil))
		}
	}
	return taskIDs, nil
}

func (s *ProjectService) publish(ctx context.Context, typ realtime.EventType, id uuid.UUID, row *model.Project, before, after *model.Project) {
	if s.events == nil {
		return
	}
	var old, cur interface{}
	if before != nil {
		old = before
	}
	if after != nil {
		cur = after
	}
	s.events.Publish(ctx, realtime.NewEvent(realtime.TableProjects, typ, id, row.CompanyID, row.CreatedBy, old, cur))
}
