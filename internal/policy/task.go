package policy

import (
	"time"

	"taskflow/internal/apperror"
	"taskflow/internal/model"

	"github.com/google/uuid"
)

// TaskField names a mutable task attribute.
type TaskField string

const (
	FieldTitle       TaskField = "title"
	FieldDescription TaskField = "description"
	FieldStatus      TaskField = "status"
	FieldPriority    TaskField = "priority"
	FieldAssignee    TaskField = "assignee_id"
	FieldDueDate     TaskField = "due_date"
	FieldProject     TaskField = "project_id"
)

func (f TaskField) valid() bool {
	switch f {
	case FieldTitle, FieldDescription, FieldStatus, FieldPriority, FieldAssignee, FieldDueDate, FieldProject:
		return true
	}
	return false
}

// CanCreateTask allows any authenticated principal to create a task.
// Only admins may file it under a project at creation time.
func CanCreateTask(p model.Principal, projectID *uuid.UUID) error {
	if !p.Role.Valid() {
		return apperror.Forbidden("Unknown role")
	}
	if projectID != nil && !p.Role.IsAdmin() {
		return apperror.Forbidden("Only admins can assign tasks to projects")
	}
	return nil
}

// CanUpdateTaskField checks a single field change on an existing task.
func CanUpdateTaskField(p model.Principal, task *model.Task, field TaskField) error {
	if !field.valid() {
		return apperror.Validation("Unknown task field: " + string(field))
	}
	if err := Guard(p, task.CompanyID, task.CreatedBy); err != nil {
		return err
	}
	if task.IsDeleted() {
		return apperror.Validation("Deleted tasks cannot be modified")
	}
	if field == FieldProject && !p.Role.IsAdmin() {
		return apperror.Forbidden("Only admins can assign tasks to projects")
	}
	return nil
}

// OnStatusTransition moves task to status. Any status may follow any other.
// CompletedAt is stamped on the first entry into done and kept afterwards.
func OnStatusTransition(task *model.Task, status model.TaskStatus, now time.Time) {
	task.Status = status
	if status == model.StatusDone && task.CompletedAt == nil {
		completed := now
		task.CompletedAt = &completed
	}
}

// SoftDelete marks the task deleted. It leaves every other field untouched,
// and deleting an already deleted task keeps the original timestamp.
func SoftDelete(p model.Principal, task *model.Task, now time.Time) error {
	if err := Guard(p, task.CompanyID, task.CreatedBy); err != nil {
		return err
	}
	if task.DeletedAt == nil {
		deleted := now
		task.DeletedAt = &deleted
	}
	return nil
}
