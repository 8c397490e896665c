package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrohub/agrohub/internal/shared"
)

func newTestService(t *testing.T, users *memoryUsers, legacy LegacyStore) *Service {
	t.Helper()
	tokens, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return NewService(users, legacy, NewIdentityLinker(users, nil), tokens, nil)
}

func TestAuthenticatePrimary(t *testing.T) {
	users := newMemoryUsers(
		User{ID: 1, Login: "gm_north", Email: "gm@agrohub.test", PasswordHash: mustHash("s3cret!"), Role: shared.RoleManager, IsActive: true},
		User{ID: 2, Login: "former", PasswordHash: mustHash("s3cret!"), Role: shared.RoleUser},
	)
	svc := newTestService(t, users, nil)
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "GM@agrohub.test", "s3cret!")
	require.NoError(t, err)
	require.EqualValues(t, 1, u.ID)

	_, err = svc.Authenticate(ctx, "gm_north", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.ErrorIs(t, err, shared.ErrAuthenticationRequired)

	_, err = svc.Authenticate(ctx, "former", "s3cret!")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "x")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateLegacyCreatesLocalUser(t *testing.T) {
	users := newMemoryUsers()
	legacy := memoryLegacy{"vm": {ID: 77, Username: "vm_south", Email: "vm@old.test", PasswordHash: phpHash("pa55"), Role: "user"}}
	svc := newTestService(t, users, legacy)
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "vm_south", "pa55")
	require.NoError(t, err)
	require.Equal(t, "vm_south", u.Login)
	require.Equal(t, shared.RoleUser, u.Role)
	require.EqualValues(t, 77, *u.LegacyAccountID)
	require.Empty(t, u.PasswordHash)

	again, err := svc.Authenticate(ctx, "vm_south", "pa55")
	require.NoError(t, err)
	require.Equal(t, u.ID, again.ID)
	require.Len(t, users.users, 1)

	_, err = svc.Authenticate(ctx, "vm_south", "nope")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateFallsBackWhenPrimaryPasswordDiffers(t *testing.T) {
	users := newMemoryUsers(User{ID: 5, Login: "hr_anna", Email: "anna@agrohub.test", PasswordHash: mustHash("new-pass"), Role: shared.RoleHR, IsActive: true})
	legacy := memoryLegacy{"anna": {ID: 9, Username: "anna", Email: "anna@agrohub.test", PasswordHash: phpHash("old-pass")}}
	svc := newTestService(t, users, legacy)

	u, err := svc.Authenticate(context.Background(), "anna", "old-pass")
	require.NoError(t, err)
	require.EqualValues(t, 5, u.ID, "linked by email")
	require.Equal(t, shared.RoleHR, u.Role)
	require.Equal(t, 1, users.links)
}

func TestLoginIssuesToken(t *testing.T) {
	users := newMemoryUsers(User{ID: 1, Login: "admin", PasswordHash: mustHash("admin-pass"), Role: shared.RoleAdmin, IsActive: true})
	svc := newTestService(t, users, nil)

	_, err := svc.Login(context.Background(), LoginInput{Login: "admin"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "password", verr.Field)

	sess, err := svc.Login(context.Background(), LoginInput{Login: "admin", Password: "admin-pass"})
	require.NoError(t, err)
	claims, err := svc.tokens.Parse(sess.Token)
	require.NoError(t, err)
	require.EqualValues(t, 1, claims.UserID)
	require.Equal(t, "admin", claims.Role)
}

func TestCurrentUserRejectsDisabled(t *testing.T) {
	users := newMemoryUsers(User{ID: 3, Login: "x", IsActive: false})
	svc := newTestService(t, users, nil)
	_, err := svc.CurrentUser(context.Background(), 3)
	require.ErrorIs(t, err, shared.ErrAuthenticationRequired)
	_, err = svc.CurrentUser(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrAuthenticationRequired)
}
