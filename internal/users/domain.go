package users

import (
	"time"

	"github.com/agrohub/agrohub/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Login           string      `json:"login"`
	Email           string      `json:"email"`
	Role            shared.Role `json:"role"`
	IsActive        bool        `json:"is_active"`
	LegacyAccountID *int64      `json:"legacy_account_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// CreateInput is the admin create payload.
type CreateInput struct {
	Name     string      `json:"name" validate:"required,max=255"`
	Login    string      `json:"login" validate:"required,max=100"`
	Email    string      `json:"email" validate:"omitempty,email,max=255"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     shared.Role `json:"role"`
}

// UpdateInput changes the supplied fields only.
type UpdateInput struct {
	Name     *string      `json:"name" validate:"omitempty,max=255"`
	Email    *string      `json:"email" validate:"omitempty,max=255"`
	Role     *shared.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
	Password *string      `json:"password" validate:"omitempty,min=8,max=72"`
}

// Empty reports whether no field was supplied.
func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Email == nil && in.Role == nil && in.IsActive == nil && in.Password == nil
}
