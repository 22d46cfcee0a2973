package auth

import (
	"github.com/google/uuid"
)

// Role is resolved once at login and carried on the Principal.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleAdvisor      Role = "advisor"
	RoleProfessional Role = "professional"
	RolePatient      Role = "patient"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleAdvisor, RoleProfessional, RolePatient:
		return r, true
	}
	return "", false
}

// NeedsProfile reports whether users of this role must have a profile row.
func (r Role) NeedsProfile() bool {
	return r != RoleAdmin
}

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Username  string
	FullName  string
	Role      Role
	// ProfileID is the patient, professional or advisor row of the user. Nil for admins.
	ProfileID *uuid.UUID
}

// Is reports whether p holds one of roles. Admins pass every check.
func (p Principal) Is(roles ...Role) bool {
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
