package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskflow/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

// TaskFilter narrows a task listing. Soft-deleted tasks are left out unless
// IncludeHistory is set.
type TaskFilter struct {
	Scope          Scope
	ProjectID      *uuid.UUID
	Unfiled        bool
	Status         *model.TaskStatus
	AssigneeID     *uuid.UUID
	IncludeHistory bool
}

// StatusCount is one row of the task statistics breakdown.
type StatusCount struct {
	Status  model.TaskStatus
	Deleted bool
	Count   int64
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create adds a new task to the database
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID, soft-deleted or not
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// List retrieves the tasks matching f, ordered for a board view
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	q := r.filter(r.db.WithContext(ctx).Model(&model.Task{}), f)
	if !f.IncludeHistory {
		q = q.Where("deleted_at IS NULL")
	}

	var tasks []model.Task
	if err := q.Order("status").Order("position").Order("created_at").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// StatusCounts counts tasks per status, split by soft-deleted or not.
func (r *TaskRepository) StatusCounts(ctx context.Context, f TaskFilter) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.filter(r.db.WithContext(ctx).Model(&model.Task{}), f).
		Select("status, deleted_at IS NOT NULL AS deleted, COUNT(*) AS count").
		Group("status, deleted").
		Scan(&rows).Error
	return rows, err
}

// NextPosition returns the position after the last active task of a board column
func (r *TaskRepository) NextPosition(ctx context.Context, task *model.Task) (int, error) {
	var next int
	err := r.column(r.db.WithContext(ctx).Model(&model.Task{}), task, task.Status).
		Where("deleted_at IS NULL").
		Select("COALESCE(MAX(position) + 1, 0)").
		Scan(&next).Error
	return next, err
}

// Update saves every field of an existing task
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	result := r.db.WithContext(ctx).Model(task).Select("*").Updates(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Relocate saves a task that left the column it held in from, by changing
// status or project or by being soft-deleted, and closes the gap behind it.
func (r *TaskRepository) Relocate(ctx context.Context, task, from *model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(task).Select("*").Updates(task)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		return r.column(tx.Model(&model.Task{}), from, from.Status).
			Where("deleted_at IS NULL AND id <> ? AND position > ?", task.ID, from.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// Move saves a task that was dragged from (fromStatus, fromPosition) to its
// current Status and Position, shifting the neighbours in both columns.
func (r *TaskRepository) Move(ctx context.Context, task *model.Task, fromStatus model.TaskStatus, fromPosition int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		others := func(status model.TaskStatus) *gorm.DB {
			return r.column(tx.Model(&model.Task{}), task, status).Where("deleted_at IS NULL AND id <> ?", task.ID)
		}

		if fromStatus != task.Status {
			// Close the gap in the old column
			if err := others(fromStatus).
				Where("position > ?", fromPosition).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}
			// Make room in the new column
			if err := others(task.Status).
				Where("position >= ?", task.Position).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		} else if fromPosition < task.Position {
			if err := others(task.Status).
				Where("position > ? AND position <= ?", fromPosition, task.Position).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}
		} else if fromPosition > task.Position {
			if err := others(task.Status).
				Where("position >= ? AND position < ?", task.Position, fromPosition).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		}

		return tx.Save(task).Error
	})
}

func (r *TaskRepository) filter(q *gorm.DB, f TaskFilter) *gorm.DB {
	q = f.Scope.apply(q, "created_by")
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	} else if f.Unfiled {
		q = q.Where("project_id IS NULL")
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	return q
}

// column selects the board column a task lives in: same tenant, same project, same status.
func (r *TaskRepository) column(q *gorm.DB, task *model.Task, status model.TaskStatus) *gorm.DB {
	if task.CompanyID != nil {
		q = q.Where("company_id = ?", *task.CompanyID)
	} else {
		q = q.Where("company_id IS NULL AND created_by = ?", task.CreatedBy)
	}
	if task.ProjectID != nil {
		q = q.Where("project_id = ?", *task.ProjectID)
	} else {
		q = q.Where("project_id IS NULL")
	}
	return q.Where("status = ?", status)
}
