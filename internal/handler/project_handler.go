package handler

import (
	"context"
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProjectService interface {
	Create(ctx context.Context, p model.Principal, in service.CreateProjectInput) (*model.Project, error)
	Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Project, error)
	List(ctx context.Context, p model.Principal, status string, companyID *uuid.UUID) ([]model.Project, error)
	Update(ctx context.Context, p model.Principal, id uuid.UUID, patch service.ProjectPatch) (*model.Project, error)
	Delete(ctx context.Context, p model.Principal, id uuid.UUID) ([]uuid.UUID, error)
}

type ProjectHandler struct {
	projects ProjectService
}

func NewProjectHandler(projects ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CompanyID   string `json:"company_id"`
}

type ProjectUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type ProjectDeleteResponse struct {
	DeletedTasks int `json:"deleted_tasks"`
}

// Create godoc
// @Summary  Create a project
// @Tags     Projects
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body ProjectRequest true "Project"
// @Success  201 {object} model.Project
// @Failure  403 {object} ErrorBody
// @Router   /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	companyID, err := optionalID(req.CompanyID)
	if err != nil {
		badRequest(c, "Invalid company_id format")
		return
	}

	project, err := h.projects.Create(c.Request.Context(), p, service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		CompanyID:   companyID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// List godoc
// @Summary  List visible projects
// @Tags     Projects
// @Produce  json
// @Security BearerAuth
// @Param    status     query string false "active, completed or archived"
// @Param    company_id query string false "System admins only"
// @Success  200 {array} model.Project
// @Router   /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	companyID, err := optionalID(c.Query("company_id"))
	if err != nil {
		badRequest(c, "Invalid company_id format")
		return
	}

	projects, err := h.projects.List(c.Request.Context(), p, c.Query("status"), companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetByID godoc
// @Summary  Get a project
// @Tags     Projects
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Project ID"
// @Success  200 {object} model.Project
// @Failure  404 {object} ErrorBody
// @Router   /projects/{id} [get]
func (h *ProjectHandler) GetByID(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	project, err := h.projects.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Update godoc
// @Summary  Edit a project
// @Tags     Projects
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string               true "Project ID"
// @Param    body body ProjectUpdateRequest true "Changes"
// @Success  200 {object} model.Project
// @Router   /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ProjectUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	project, err := h.projects.Update(c.Request.Context(), p, id, service.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Delete godoc
// @Summary  Delete a project and its tasks
// @Tags     Projects
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Project ID"
// @Success  200 {object} ProjectDeleteResponse
// @Router   /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	removed, err := h.projects.Delete(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProjectDeleteResponse{DeletedTasks: len(removed)})
}
