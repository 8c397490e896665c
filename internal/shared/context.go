package shared

import "context"

// Principal describes the authenticated actor of a request.
type Principal struct {
	UserID int64
	Login  string
	Name   string
	Role   Role
}

// IsAdmin reports whether the principal holds the global admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.UserID > 0
}

// RequirePrincipal returns ErrAuthenticationRequired when no principal is set.
func RequirePrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, ErrAuthenticationRequired
	}
	return p, nil
}
