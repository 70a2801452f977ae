package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskService interface {
	Create(ctx context.Context, p model.Principal, in service.CreateTaskInput) (*model.Task, error)
	Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, p model.Principal, q service.TaskQuery) ([]model.Task, error)
	Update(ctx context.Context, p model.Principal, id uuid.UUID, patch service.TaskPatch) (*model.Task, error)
	Move(ctx context.Context, p model.Principal, id uuid.UUID, status string, position int) (*model.Task, error)
	Delete(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Task, error)
	Stats(ctx context.Context, p model.Principal, projectID, companyID *uuid.UUID) (*service.TaskStats, error)
}

type TaskHandler struct {
	tasks TaskService
}

func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// TaskRequest is the body of a task creation.
type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	ProjectID   string     `json:"project_id"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskUpdateRequest carries only the fields to change. An explicit null
// clears project_id, assignee_id and due_date.
type TaskUpdateRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
	ProjectID   nullableString `json:"project_id" swaggertype:"string"`
	AssigneeID  nullableString `json:"assignee_id" swaggertype:"string"`
	DueDate     nullableString `json:"due_date" swaggertype:"string"`
}

type TaskMoveRequest struct {
	Status   string `json:"status"`
	Position *int   `json:"position"`
}

// nullableString tells an absent key from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// clears reports an explicit null or empty string.
func (n nullableString) clears() bool {
	return n.Set && (n.Value == nil || *n.Value == "")
}

// Create godoc
// @Summary  Create a task
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body TaskRequest true "Task"
// @Success  201 {object} model.Task
// @Failure  403 {object} ErrorBody
// @Failure  422 {object} ErrorBody
// @Router   /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	projectID, err := optionalID(req.ProjectID)
	if err != nil {
		badRequest(c, "Invalid project_id format")
		return
	}
	assigneeID, err := optionalID(req.AssigneeID)
	if err != nil {
		badRequest(c, "Invalid assignee_id format")
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), p, service.CreateTaskInput{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  assigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// List godoc
// @Summary  List visible tasks
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Param    project_id      query string false "Project filter"
// @Param    unfiled         query bool   false "Only tasks without a project"
// @Param    status          query string false "todo, in_progress or done"
// @Param    assignee_id     query string false "Assignee filter"
// @Param    include_deleted query bool   false "Include soft-deleted tasks"
// @Param    company_id      query string false "System admins only"
// @Success  200 {array} model.Task
// @Router   /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var q service.TaskQuery
	var err error
	if q.ProjectID, err = optionalID(c.Query("project_id")); err != nil {
		badRequest(c, "Invalid project_id format")
		return
	}
	if q.AssigneeID, err = optionalID(c.Query("assignee_id")); err != nil {
		badRequest(c, "Invalid assignee_id format")
		return
	}
	if q.CompanyID, err = optionalID(c.Query("company_id")); err != nil {
		badRequest(c, "Invalid company_id format")
		return
	}
	q.Status = c.Query("status")
	q.Unfiled = c.Query("unfiled") == "true"
	q.IncludeHistory = c.Query("include_deleted") == "true"

	tasks, err := h.tasks.List(c.Request.Context(), p, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetByID godoc
// @Summary  Get a task, including soft-deleted ones
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Task ID"
// @Success  200 {object} model.Task
// @Failure  404 {object} ErrorBody
// @Router   /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Update godoc
// @Summary  Edit task fields
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string            true "Task ID"
// @Param    body body TaskUpdateRequest true "Changes"
// @Success  200 {object} model.Task
// @Failure  403 {object} ErrorBody
// @Router   /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	patch := service.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		ClearProject:  req.ProjectID.clears(),
		ClearAssignee: req.AssigneeID.clears(),
		ClearDueDate:  req.DueDate.clears(),
	}
	if req.ProjectID.Set && !patch.ClearProject {
		projectID, err := uuid.Parse(*req.ProjectID.Value)
		if err != nil {
			badRequest(c, "Invalid project_id format")
			return
		}
		patch.ProjectID = &projectID
	}
	if req.AssigneeID.Set && !patch.ClearAssignee {
		assigneeID, err := uuid.Parse(*req.AssigneeID.Value)
		if err != nil {
			badRequest(c, "Invalid assignee_id format")
			return
		}
		patch.AssigneeID = &assigneeID
	}
	if req.DueDate.Set && !patch.ClearDueDate {
		due, err := time.Parse(time.RFC3339, *req.DueDate.Value)
		if err != nil {
			badRequest(c, "Invalid due_date format")
			return
		}
		patch.DueDate = &due
	}

	task, err := h.tasks.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Move godoc
// @Summary  Move a task to a status column and position
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string          true "Task ID"
// @Param    body body TaskMoveRequest true "Target"
// @Success  200 {object} model.Task
// @Router   /tasks/{id}/move [post]
func (h *TaskHandler) Move(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req TaskMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Position == nil {
		badRequest(c, "Invalid input")
		return
	}

	task, err := h.tasks.Move(c.Request.Context(), p, id, req.Status, *req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary  Soft-delete a task
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Task ID"
// @Success  200 {object} model.Task
// @Router   /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	task, err := h.tasks.Delete(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Stats godoc
// @Summary  Task counts per status, soft-deleted included
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Param    project_id query string false "Project filter"
// @Param    company_id query string false "System admins only"
// @Success  200 {object} service.TaskStats
// @Router   /tasks/stats [get]
func (h *TaskHandler) Stats(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	projectID, err := optionalID(c.Query("project_id"))
	if err != nil {
		badRequest(c, "Invalid project_id format")
		return
	}
	companyID, err := optionalID(c.Query("company_id"))
	if err != nil {
		badRequest(c, "Invalid company_id format")
		return
	}

	stats, err := h.tasks.Stats(c.Request.Context(), p, projectID, companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
