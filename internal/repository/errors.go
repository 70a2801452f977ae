package repository

import (
	"taskflow/internal/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Common repository errors
var (
	ErrCompanyNotFound = apperror.NotFound("Company not found")
	ErrMemberNotFound  = apperror.NotFound("Member not found")
	ErrProjectNotFound = apperror.NotFound("Project not found")
	ErrTaskNotFound    = apperror.NotFound("Task not found")
)

// Scope restricts a query to the rows a principal may see.
// All is set for system admins; otherwise CompanyID selects a company, and a
// nil CompanyID selects personal rows owned by OwnerID.
type Scope struct {
	All       bool
	CompanyID *uuid.UUID
	OwnerID   uuid.UUID
}

func (s Scope) apply(db *gorm.DB, ownerColumn string) *gorm.DB {
	switch {
	case s.All:
		return db
	case s.CompanyID != nil:
		return db.Where("company_id = ?", *s.CompanyID)
	default:
		return db.Where("company_id IS NULL AND "+ownerColumn+" = ?", s.OwnerID)
	}
}
