package handler

import (
	"context"
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TeamService interface {
	List(ctx context.Context, p model.Principal, q service.MemberQuery) ([]model.Member, error)
	Create(ctx context.Context, p model.Principal, in service.CreateMemberInput) (*model.Member, error)
	SetRole(ctx context.Context, p model.Principal, targetID uuid.UUID, role string) (*model.Member, error)
	SetPassword(ctx context.Context, p model.Principal, targetID uuid.UUID, password string) error
	SendPasswordReset(ctx context.Context, p model.Principal, targetID uuid.UUID) error
	Delete(ctx context.Context, p model.Principal, targetID uuid.UUID) error
}

type TeamHandler struct {
	team TeamService
}

func NewTeamHandler(team TeamService) *TeamHandler {
	return &TeamHandler{team: team}
}

type MemberRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FullName  string `json:"full_name" binding:"required,min=2"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	Role      string `json:"role" binding:"omitempty,oneof=user company_admin system_admin sys_admin"`
	CompanyID string `json:"company_id"`
}

type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user company_admin system_admin sys_admin"`
}

type PasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// List godoc
// @Summary  List members visible to the caller
// @Tags     Team
// @Produce  json
// @Security BearerAuth
// @Param    company_id query string false "System admins only"
// @Param    personal   query bool   false "System admins only: accounts without a company"
// @Success  200 {array} model.Member
// @Router   /members [get]
func (h *TeamHandler) List(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	companyID, err := optionalID(c.Query("company_id"))
	if err != nil {
		badRequest(c, "Invalid company_id format")
		return
	}

	members, err := h.team.List(c.Request.Context(), p, service.MemberQuery{
		CompanyID: companyID,
		Personal:  c.Query("personal") == "true",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Create godoc
// @Summary  Add a member
// @Tags     Team
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body MemberRequest true "Member"
// @Success  201 {object} model.Member
// @Failure  403 {object} ErrorBody
// @Router   /members [post]
func (h *TeamHandler) Create(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	companyID, err := optionalID(req.CompanyID)
	if err != nil {
		badRequest(c, "Invalid company_id format")
		return
	}

	member, err := h.team.Create(c.Request.Context(), p, service.CreateMemberInput{
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  req.Password,
		Role:      req.Role,
		CompanyID: companyID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// SetRole godoc
// @Summary  Change a member's role
// @Tags     Team
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id   path string      true "Member ID"
// @Param    body body RoleRequest true "Role"
// @Success  200 {object} model.Member
// @Failure  403 {object} ErrorBody
// @Router   /members/{id}/role [put]
func (h *TeamHandler) SetRole(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	member, err := h.team.SetRole(c.Request.Context(), p, id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// SetPassword godoc
// @Summary  Set a member's password directly (system admins)
// @Tags     Team
// @Accept   json
// @Security BearerAuth
// @Param    id   path string          true "Member ID"
// @Param    body body PasswordRequest true "Password"
// @Success  204
// @Failure  403 {object} ErrorBody
// @Router   /members/{id}/password [post]
func (h *TeamHandler) SetPassword(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	if err := h.team.SetPassword(c.Request.Context(), p, id, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendPasswordReset godoc
// @Summary  Email a password reset link to the member
// @Tags     Team
// @Security BearerAuth
// @Param    id path string true "Member ID"
// @Success  202
// @Failure  403 {object} ErrorBody
// @Router   /members/{id}/password-reset [post]
func (h *TeamHandler) SendPasswordReset(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.team.SendPasswordReset(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Delete godoc
// @Summary  Remove a member
// @Tags     Team
// @Security BearerAuth
// @Param    id path string true "Member ID"
// @Success  204
// @Failure  403 {object} ErrorBody
// @Router   /members/{id} [delete]
func (h *TeamHandler) Delete(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.team.Delete(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
