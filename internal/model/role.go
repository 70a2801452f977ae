package model

import "github.com/google/uuid"

// Role is the closed set of account roles.
type Role string

const (
	RoleUser         Role = "user"
	RoleCompanyAdmin Role = "company_admin"
	RoleSystemAdmin  Role = "system_admin"
)

// ParseRole maps a stored or submitted role name onto a Role.
// "sys_admin" is accepted as submitted input only; stored rows always hold "system_admin".
func ParseRole(s string) (Role, bool) {
	switch s {
	case "user":
		return RoleUser, true
	case "company_admin":
		return RoleCompanyAdmin, true
	case "system_admin", "sys_admin":
		return RoleSystemAdmin, true
	}
	return "", false
}

// IsAdmin reports whether r is admin-class.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleCompanyAdmin, RoleSystemAdmin:
		return true
	case RoleUser:
		return false
	}
	return false
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCompanyAdmin, RoleSystemAdmin:
		return true
	}
	return false
}

// Principal is an authenticated actor. CompanyID is nil for personal accounts.
type Principal struct {
	ID        uuid.UUID
	CompanyID *uuid.UUID
	Role      Role
}

func (p Principal) IsSystemAdmin() bool {
	return p.Role == RoleSystemAdmin
}

// SameCompany compares two optional company ids; two nils are equal.
func SameCompany(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
