// Package policy holds the authorization rules and task state transitions.
// Every function takes the acting principal explicitly and performs no I/O.
package policy

import (
	"taskflow/internal/apperror"
	"taskflow/internal/model"

	"github.com/google/uuid"
)

// CanAccess is the tenant isolation guard. System admins pass everywhere.
// Personal entities (nil company) are reachable only by their owner.
func CanAccess(p model.Principal, companyID *uuid.UUID, ownerID uuid.UUID) bool {
	switch p.Role {
	case model.RoleSystemAdmin:
		return true
	case model.RoleCompanyAdmin, model.RoleUser:
		if companyID == nil && p.CompanyID == nil {
			return ownerID == p.ID
		}
		return model.SameCompany(companyID, p.CompanyID)
	}
	return false
}

// Guard is CanAccess as an error.
func Guard(p model.Principal, companyID *uuid.UUID, ownerID uuid.UUID) error {
	if !CanAccess(p, companyID, ownerID) {
		return apperror.Forbidden("You don't have access to this resource")
	}
	return nil
}
