package shared

import "strings"

// Role is the global account role stored on users.role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
	RoleMonitor Role = "monitor"
	RoleHR      Role = "hr"
)

// KnownRoles lists every role accepted by the user admin endpoints.
func KnownRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleUser, RoleMonitor, RoleHR}
}

// ParseRole normalises raw into a Role. Unrecognised values are returned
// lowercased so callers can decide how to treat them.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether r is one of KnownRoles.
func (r Role) Known() bool {
	for _, known := range KnownRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// In reports whether r matches any of roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}
