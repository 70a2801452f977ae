package handler

import (
	"context"
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/service"

	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.Member, string, error)
	Login(ctx context.Context, email, password string) (*model.Member, string, error)
	Me(ctx context.Context, p model.Principal) (*model.Member, error)
	UpdateProfile(ctx context.Context, p model.Principal, fullName string) (*model.Member, error)
	ConfirmPasswordReset(ctx context.Context, token, password string) error
}

type AuthHandler struct {
	accounts AccountService
}

func NewAuthHandler(accounts AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	FullName    string `json:"full_name" binding:"required,min=2"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	CompanyName string `json:"company_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string        `json:"token"`
	User  *model.Member `json:"user"`
}

type ProfileRequest struct {
	FullName string `json:"full_name" binding:"required"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// Register godoc
// @Summary  Create an account, optionally with a new company
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Param    body body RegisterRequest true "Account"
// @Success  201 {object} AuthResponse
// @Failure  422 {object} ErrorBody
// @Router   /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	member, token, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		FullName:    req.FullName,
		Password:    req.Password,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: member})
}

// Login godoc
// @Summary  Exchange credentials for a token
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Param    body body LoginRequest true "Credentials"
// @Success  200 {object} AuthResponse
// @Failure  401 {object} ErrorBody
// @Router   /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	member, token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: member})
}

// Me godoc
// @Summary  Current account
// @Tags     Auth
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} model.Member
// @Router   /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	member, err := h.accounts.Me(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// UpdateMe godoc
// @Summary  Change own display name
// @Tags     Auth
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body ProfileRequest true "Profile"
// @Success  200 {object} model.Member
// @Router   /me [put]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	member, err := h.accounts.UpdateProfile(c.Request.Context(), p, req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// ConfirmPasswordReset godoc
// @Summary  Set a new password with a mailed reset token
// @Tags     Auth
// @Accept   json
// @Param    body body ResetConfirmRequest true "Reset"
// @Success  204
// @Failure  422 {object} ErrorBody
// @Router   /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
