package auth

import (
	"time"

	"github.com/agrohub/agrohub/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Login           string      `json:"login"`
	Email           string      `json:"email"`
	PasswordHash    string      `json:"-"`
	Role            shared.Role `json:"role"`
	IsActive        bool        `json:"is_active"`
	LegacyAccountID *int64      `json:"legacy_account_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Principal converts the user into the request principal.
func (u User) Principal() shared.Principal {
	return shared.Principal{UserID: u.ID, Login: u.Login, Name: u.Name, Role: u.Role}
}

// LegacyAccount is a row of the legacy accounts database.
type LegacyAccount struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// ExternalIdentity is an identity proven against the legacy store.
type ExternalIdentity struct {
	LegacyID int64
	Login    string
	Email    string
	Name     string
	Role     shared.Role
}

// IdentityFromLegacy maps a legacy account onto an ExternalIdentity.
func IdentityFromLegacy(acc LegacyAccount) ExternalIdentity {
	return ExternalIdentity{
		LegacyID: acc.ID,
		Login:    acc.Username,
		Email:    acc.Email,
		Name:     acc.Username,
		Role:     shared.ParseRole(acc.Role),
	}
}

// LoginInput is the login payload.
type LoginInput struct {
	Login    string `json:"login" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}
