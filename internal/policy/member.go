package policy

import "taskflow/internal/model"

// ResetMode is how, if at all, a principal may reset another member's password.
type ResetMode int

const (
	ResetDenied ResetMode = iota
	// ResetDirect sets a new password immediately. Audited.
	ResetDirect
	// ResetEmail mails a reset link to the target's own address.
	ResetEmail
)

func (m ResetMode) String() string {
	switch m {
	case ResetDirect:
		return "direct"
	case ResetEmail:
		return "email"
	}
	return "denied"
}

func CanCreateMember(p model.Principal) bool {
	return p.Role.IsAdmin()
}

// CanGrantRole reports whether p may hand out role r at all.
func CanGrantRole(p model.Principal, r model.Role) bool {
	if !p.Role.IsAdmin() || !r.Valid() {
		return false
	}
	return r != model.RoleSystemAdmin || p.IsSystemAdmin()
}

// CanManageMember is the tenant guard applied to membership records.
func CanManageMember(p model.Principal, target *model.Member) bool {
	return p.Role.IsAdmin() && CanAccess(p, target.CompanyID, target.ID)
}

func CanSetRole(p model.Principal, target *model.Member, requested model.Role) bool {
	if !CanManageMember(p, target) || !requested.Valid() {
		return false
	}
	if target.Role == model.RoleSystemAdmin && !p.IsSystemAdmin() {
		return false
	}
	if target.ID == p.ID && target.Role == model.RoleCompanyAdmin && requested != model.RoleCompanyAdmin {
		return false
	}
	if requested == model.RoleSystemAdmin && !p.IsSystemAdmin() {
		return false
	}
	return true
}

func CanDeleteMember(p model.Principal, target *model.Member) bool {
	if target.ID == p.ID {
		return false
	}
	if target.Role == model.RoleSystemAdmin && !p.IsSystemAdmin() {
		return false
	}
	return CanManageMember(p, target)
}

// CanResetPassword keeps the two reset paths apart: only system admins may
// set another member's password, company admins may only send the reset email.
func CanResetPassword(p model.Principal, target *model.Member) ResetMode {
	if !CanManageMember(p, target) {
		return ResetDenied
	}
	switch p.Role {
	case model.RoleSystemAdmin:
		return ResetDirect
	case model.RoleCompanyAdmin:
		if target.Role == model.RoleSystemAdmin {
			return ResetDenied
		}
		return ResetEmail
	}
	return ResetDenied
}
