package service

import (
	"context"
	"strings"
	"time"

	"taskflow/internal/apperror"
	"taskflow/internal/model"
	"taskflow/internal/policy"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TaskService struct {
	tasks    TaskStore
	projects ProjectStore
	members  MemberStore
	events   Publisher
	now      Clock
	log      logrus.FieldLogger
}

func NewTaskService(tasks TaskStore, projects ProjectStore, members MemberStore, events Publisher, log logrus.FieldLogger) *TaskService {
	return &TaskService{
		tasks:    tasks,
		projects: projects,
		members:  members,
		events:   events,
		now:      time.Now,
		log:      log,
	}
}

// WithClock replaces the time source.
func (s *TaskService) WithClock(c Clock) *TaskService {
	s.now = c
	return s
}

type CreateTaskInput struct {
	ProjectID   *uuid.UUID
	Title       string
	Description string
	Status      string
	Priority    string
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
}

// TaskPatch lists the fields to change. A nil pointer leaves the field alone;
// the Clear flags set the nullable references back to null.
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *string
	Priority      *string
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	ProjectID     *uuid.UUID
	ClearProject  bool
	DueDate       *time.Time
	ClearDueDate  bool
}

// Fields returns the task fields the patch touches.
func (pt TaskPatch) Fields() []policy.TaskField {
	var fields []policy.TaskField
	if pt.Title != nil {
		fields = append(fields, policy.FieldTitle)
	}
	if pt.Description != nil {
		fields = append(fields, policy.FieldDescription)
	}
	if pt.Status != nil {
		fields = append(fields, policy.FieldStatus)
	}
	if pt.Priority != nil {
		fields = append(fields, policy.FieldPriority)
	}
	if pt.AssigneeID != nil || pt.ClearAssignee {
		fields = append(fields, policy.FieldAssignee)
	}
	if pt.ProjectID != nil || pt.ClearProject {
		fields = append(fields, policy.FieldProject)
	}
	if pt.DueDate != nil || pt.ClearDueDate {
		fields = append(fields, policy.FieldDueDate)
	}
	return fields
}

type TaskQuery struct {
	ProjectID      *uuid.UUID
	Unfiled        bool
	Status         string
	AssigneeID     *uuid.UUID
	IncludeHistory bool
	// CompanyID narrows a system admin's view to one company.
	CompanyID *uuid.UUID
}

type TaskStats struct {
	Total    int64                      `json:"total"`
	Active   int64                      `json:"active"`
	Deleted  int64                      `json:"deleted"`
	ByStatus map[model.TaskStatus]int64 `json:"by_status"`
}

func (s *TaskService) Create(ctx context.Context, p model.Principal, in CreateTaskInput) (*model.Task, error) {
	if err := check(s.log, "task.create", p, policy.CanCreateTask(p, in.ProjectID)); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.Validation("Task title is required")
	}
	status := model.StatusTodo
	if in.Status != "" {
		parsed, ok := model.ParseTaskStatus(in.Status)
		if !ok {
			return nil, apperror.Validation("Invalid task status")
		}
		status = parsed
	}
	priority := model.PriorityMedium
	if in.Priority != "" {
		parsed, ok := model.ParsePriority(in.Priority)
		if !ok {
			return nil, apperror.Validation("Invalid task priority")
		}
		priority = parsed
	}

	task := &model.Task{
		ID:          uuid.New(),
		CompanyID:   p.CompanyID,
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		CreatedBy:   p.ID,
		DueDate:     in.DueDate,
	}

	if in.ProjectID != nil {
		project, err := s.referencedProject(ctx, p, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if p.IsSystemAdmin() {
			task.CompanyID = project.CompanyID
		}
		if !model.SameCompany(project.CompanyID, task.CompanyID) {
			return nil, apperror.Validation("Project belongs to a different company")
		}
		task.ProjectID = &project.ID
	}
	if in.AssigneeID != nil {
		if err := s.validateAssignee(ctx, task, *in.AssigneeID); err != nil {
			return nil, err
		}
		task.AssigneeID = in.AssigneeID
	}

	policy.OnStatusTransition(task, status, s.now())

	position, err := s.tasks.NextPosition(ctx, task)
	if err != nil {
		return nil, storeErr("failed to position task", err)
	}
	task.Position = position

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, storeErr("failed to create task", err)
	}

	s.publish(ctx, realtime.EventInsert, nil, task)
	return task, nil
}

// Get returns a task, soft-deleted or not, if p may see it.
func (s *TaskService) Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load task", err)
	}
	if err := check(s.log, "task.read", p, policy.Guard(p, task.CompanyID, task.CreatedBy)); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the tasks visible to p. A project p cannot see yields an
// empty list rather than an error.
func (s *TaskService) List(ctx context.Context, p model.Principal, q TaskQuery) ([]model.Task, error) {
	filter, visible, err := s.filterFor(ctx, p, q.ProjectID, q.CompanyID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []model.Task{}, nil
	}

	filter.Unfiled = q.Unfiled
	filter.AssigneeID = q.AssigneeID
	filter.IncludeHistory = q.IncludeHistory
	if q.Status != "" {
		status, ok := model.ParseTaskStatus(q.Status)
		if !ok {
			return nil, apperror.Validation("Invalid task status")
		}
		filter.Status = &status
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, storeErr("failed to list tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) Update(ctx context.Context, p model.Principal, id uuid.UUID, patch TaskPatch) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load task", err)
	}

	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, apperror.Validation("Nothing to update")
	}
	for _, field := range fields {
		if err := check(s.log, "task.update."+string(field), p, policy.CanUpdateTaskField(p, task, field)); err != nil {
			return nil, err
		}
	}

	before := *task
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperror.Validation("Task title is required")
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		priority, ok := model.ParsePriority(*patch.Priority)
		if !ok {
			return nil, apperror.Validation("Invalid task priority")
		}
		task.Priority = priority
	}
	if patch.ClearAssignee {
		task.AssigneeID = nil
	} else if patch.AssigneeID != nil {
		if err := s.validateAssignee(ctx, task, *patch.AssigneeID); err != nil {
			return nil, err
		}
		task.AssigneeID = patch.AssigneeID
	}
	if patch.ClearProject {
		task.ProjectID = nil
	} else if patch.ProjectID != nil {
		project, err := s.referencedProject(ctx, p, *patch.ProjectID)
		if err != nil {
			return nil, err
		}
		if !model.SameCompany(project.CompanyID, task.CompanyID) {
			return nil, apperror.Validation("Project belongs to a different company")
		}
		task.ProjectID = &project.ID
	}
	if patch.ClearDueDate {
		task.DueDate = nil
	} else if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	if patch.Status != nil {
		status, ok := model.ParseTaskStatus(*patch.Status)
		if !ok {
			return nil, apperror.Validation("Invalid task status")
		}
		policy.OnStatusTransition(task, status, s.now())
	}

	// A task that changed column goes to the end of the new one.
	if task.Status != before.Status || !sameRef(task.ProjectID, before.ProjectID) {
		position, err := s.tasks.NextPosition(ctx, task)
		if err != nil {
			return nil, storeErr("failed to position task", err)
		}
		task.Position = position
		if err := s.tasks.Relocate(ctx, task, &before); err != nil {
			return nil, storeErr("failed to update task", err)
		}
	} else if err := s.tasks.Update(ctx, task); err != nil {
		return nil, storeErr("failed to update task", err)
	}

	s.publish(ctx, realtime.EventUpdate, &before, task)
	return task, nil
}

// Move is the board drag and drop: change status and slot the task in at position.
func (s *TaskService) Move(ctx context.Context, p model.Principal, id uuid.UUID, status string, position int) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load task", err)
	}
	if err := check(s.log, "task.move", p, policy.CanUpdateTaskField(p, task, policy.FieldStatus)); err != nil {
		return nil, err
	}
	target, ok := model.ParseTaskStatus(status)
	if !ok {
		return nil, apperror.Validation("Invalid task status")
	}
	if position < 0 {
		return nil, apperror.Validation("Position must not be negative")
	}

	before := *task
	policy.OnStatusTransition(task, target, s.now())

	last, err := s.tasks.NextPosition(ctx, task)
	if err != nil {
		return nil, storeErr("failed to position task", err)
	}
	if target == before.Status && last > 0 {
		last--
	}
	if position > last {
		position = last
	}
	task.Position = position

	if err := s.tasks.Move(ctx, task, before.Status, before.Position); err != nil {
		return nil, storeErr("failed to move task", err)
	}

	s.publish(ctx, realtime.EventUpdate, &before, task)
	return task, nil
}

// Delete soft-deletes the task. Deleting twice is a no-op.
func (s *TaskService) Delete(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to load task", err)
	}
	if task.IsDeleted() {
		if err := check(s.log, "task.delete", p, policy.Guard(p, task.CompanyID, task.CreatedBy)); err != nil {
			return nil, err
		}
		return task, nil
	}

	before := *task
	if err := check(s.log, "task.delete", p, policy.SoftDelete(p, task, s.now())); err != nil {
		return nil, err
	}
	if err := s.tasks.Relocate(ctx, task, &before); err != nil {
		return nil, storeErr("failed to delete task", err)
	}

	s.publish(ctx, realtime.EventDelete, &before, task)
	return task, nil
}

// Stats counts tasks per status. Soft-deleted tasks are included.
func (s *TaskService) Stats(ctx context.Context, p model.Principal, projectID, companyID *uuid.UUID) (*TaskStats, error) {
	stats := &TaskStats{ByStatus: map[model.TaskStatus]int64{
		model.StatusTodo:       0,
		model.StatusInProgress: 0,
		model.StatusDone:       0,
	}}

	filter, visible, err := s.filterFor(ctx, p, projectID, companyID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return stats, nil
	}

	rows, err := s.tasks.StatusCounts(ctx, filter)
	if err != nil {
		return nil, storeErr("failed to count tasks", err)
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] += row.Count
		stats.Total += row.Count
		if row.Deleted {
			stats.Deleted += row.Count
		} else {
			stats.Active += row.Count
		}
	}
	return stats, nil
}

// filterFor builds the base filter for p. visible is false when projectID
// names a project p may not see.
func (s *TaskService) filterFor(ctx context.Context, p model.Principal, projectID, companyID *uuid.UUID) (repository.TaskFilter, bool, error) {
	filter := repository.TaskFilter{Scope: ScopeFor(p)}
	if p.IsSystemAdmin() && companyID != nil {
		filter.Scope = repository.Scope{CompanyID: companyID}
	}

	if projectID != nil {
		project, err := s.projects.GetByID(ctx, *projectID)
		if err != nil {
			if apperror.KindOf(err) == apperror.KindNotFound {
				return filter, false, nil
			}
			return filter, false, storeErr("failed to load project", err)
		}
		if !policy.CanAccess(p, project.CompanyID, project.CreatedBy) {
			return filter, false, nil
		}
		filter.ProjectID = projectID
	}
	return filter, true, nil
}

// referencedProject loads a project named by a task. A missing project and a
// project in another tenant are reported the same way.
func (s *TaskService) referencedProject(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return nil, apperror.Validation("Project does not exist")
		}
		return nil, storeErr("failed to load project", err)
	}
	if !policy.CanAccess(p, project.CompanyID, project.CreatedBy) {
		return nil, apperror.Validation("Project does not exist")
	}
	return project, nil
}

// validateAssignee requires the assignee to belong to the task's tenant.
// Personal tasks can only be assigned to their owner.
func (s *TaskService) validateAssignee(ctx context.Context, task *model.Task, id uuid.UUID) error {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return apperror.Validation("Assignee does not exist")
		}
		return storeErr("failed to load assignee", err)
	}
	if task.CompanyID == nil {
		if member.ID != task.CreatedBy {
			return apperror.Validation("Assignee does not exist")
		}
		return nil
	}
	if !model.SameCompany(member.CompanyID, task.CompanyID) {
		return apperror.Validation("Assignee does not exist")
	}
	return nil
}

func (s *TaskService) publish(ctx context.Context, typ realtime.EventType, before, after *model.Task) {
	if s.events == nil {
		return
	}
	row := after
	var old interface{}
	if before != nil {
		old = before
	}
	s.events.Publish(ctx, realtime.NewEvent(realtime.TableTasks, typ, row.ID, row.CompanyID, row.CreatedBy, old, row))
}

func sameRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
