// Package permissions resolves what a user may do with violation records and
// lets administrators manage per-user capability overrides.
package permissions

import (
	"time"

	"github.com/agrohub/agrohub/internal/shared"
)

// Capabilities is the 13-flag capability record for the violations module.
type Capabilities struct {
	ViewAll        bool `json:"can_view_all"`
	ViewOwn        bool `json:"can_view_own"`
	ViewBranch     bool `json:"can_view_branch"`
	Create         bool `json:"can_create"`
	EditOwn        bool `json:"can_edit_own"`
	EditAll        bool `json:"can_edit_all"`
	Delete         bool `json:"can_delete"`
	ApplySanctions bool `json:"can_apply_sanctions"`
	Reject         bool `json:"can_reject"`
	ViewSanctions  bool `json:"can_view_sanctions"`
	ViewPhotos     bool `json:"can_view_photos"`
	Export         bool `json:"can_export"`
	ViewAnalytics  bool `json:"can_view_analytics"`
}

// Columns lists the capability columns in violation_user_permissions, in the
// order used by Values and Scan targets.
var Columns = []string{
	"can_view_all", "can_view_own", "can_view_branch", "can_create",
	"can_edit_own", "can_edit_all", "can_delete", "can_apply_sanctions",
	"can_reject", "can_view_sanctions", "can_view_photos", "can_export",
	"can_view_analytics",
}

// Values returns the flags in Columns order.
func (c Capabilities) Values() []any {
	return []any{
		c.ViewAll, c.ViewOwn, c.ViewBranch, c.Create,
		c.EditOwn, c.EditAll, c.Delete, c.ApplySanctions,
		c.Reject, c.ViewSanctions, c.ViewPhotos, c.Export,
		c.ViewAnalytics,
	}
}

// Targets returns scan destinations in Columns order.
func (c *Capabilities) Targets() []any {
	return []any{
		&c.ViewAll, &c.ViewOwn, &c.ViewBranch, &c.Create,
		&c.EditOwn, &c.EditAll, &c.Delete, &c.ApplySanctions,
		&c.Reject, &c.ViewSanctions, &c.ViewPhotos, &c.Export,
		&c.ViewAnalytics,
	}
}

// RoleType is the advisory label stored next to the flags. It groups users in
// the admin UI and names presets; it is never consulted during resolution.
type RoleType string

const (
	RoleTypeVM         RoleType = "vm"
	RoleTypeGM         RoleType = "gm"
	RoleTypeProduction RoleType = "production"
	RoleTypeOperations RoleType = "operations"
	RoleTypeDirector   RoleType = "director"
	RoleTypeAudit      RoleType = "audit"
	RoleTypeHR         RoleType = "hr"
	RoleTypeAdmin      RoleType = "admin"
	RoleTypeNone       RoleType = "none"
)

// Valid reports whether t is a recognised role type.
func (t RoleType) Valid() bool {
	if t == RoleTypeNone {
		return true
	}
	_, ok := presets[t]
	return ok
}

// Record is a stored per-user override row.
type Record struct {
	UserID       int64        `json:"user_id"`
	RoleType     RoleType     `json:"role_type"`
	Capabilities Capabilities `json:"permissions"`
	UpdatedBy    *int64       `json:"updated_by,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// UserRow is a user joined with their optional override row.
type UserRow struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Login      string      `json:"login"`
	Email      string      `json:"email"`
	Role       shared.Role `json:"role"`
	IsActive   bool        `json:"is_active"`
	Permission *Record     `json:"stored_permissions,omitempty"`
}

// UserPermissions is the admin listing entry.
type UserPermissions struct {
	UserRow
	RoleType  RoleType     `json:"role_type"`
	Effective Capabilities `json:"permissions"`
	Custom    bool         `json:"has_custom_permissions"`
}

// all returns a record with every flag set.
func all() Capabilities {
	return Capabilities{
		ViewAll: true, ViewOwn: true, ViewBranch: true, Create: true,
		EditOwn: true, EditAll: true, Delete: true, ApplySanctions: true,
		Reject: true, ViewSanctions: true, ViewPhotos: true, Export: true,
		ViewAnalytics: true,
	}
}

// DefaultFor returns the bundle applied when a user has no override row.
// Unknown roles get the plain user bundle.
func DefaultFor(role shared.Role) Capabilities {
	switch role {
	case shared.RoleAdmin:
		return all()
	case shared.RoleManager:
		return Capabilities{
			ViewOwn:        true,
			ViewBranch:     true,
			Create:         true,
			EditOwn:        true,
			ApplySanctions: true,
			Reject:         true,
			ViewSanctions:  true,
			ViewPhotos:     true,
			Export:         true,
		}
	default:
		return Capabilities{ViewOwn: true, ViewPhotos: true}
	}
}
