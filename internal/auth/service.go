package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrohub/agrohub/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	users     UserStore
	legacy    LegacyStore
	linker    *IdentityLinker
	tokens    *TokenIssuer
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService constructs a new Service. legacy and linker may be nil, which
// disables legacy login.
func NewService(users UserStore, legacy LegacyStore, linker *IdentityLinker, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, legacy: legacy, linker: linker, tokens: tokens, logger: logger, validator: shared.NewValidator()}
}

// Authenticate validates credentials against the primary store, then the
// legacy store. Every failure is reported as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	login = strings.TrimSpace(login)
	user, err := s.users.FindByLogin(ctx, login)
	switch {
	case err == nil:
		if user.PasswordHash != "" && checkPassword(user.PasswordHash, password) {
			return activeOnly(user)
		}
	case !errors.Is(err, shared.ErrNotFound):
		return User{}, err
	}

	if s.legacy == nil || s.linker == nil {
		return User{}, shared.ErrInvalidCredentials
	}
	acc, err := s.legacy.FindAccount(ctx, login)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.ErrInvalidCredentials
		}
		s.logger.Warn("legacy account lookup", slog.Any("error", err))
		return User{}, shared.ErrInvalidCredentials
	}
	if !checkPassword(acc.PasswordHash, password) {
		return User{}, shared.ErrInvalidCredentials
	}
	local, err := s.linker.ResolveOrCreateLocalUser(ctx, IdentityFromLegacy(acc))
	if err != nil {
		return User{}, err
	}
	return activeOnly(local)
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return Session{}, err
	}
	user, err := s.Authenticate(ctx, in.Login, in.Password)
	if err != nil {
		return Session{}, err
	}
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("login", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CurrentUser reloads an active user by id.
func (s *Service) CurrentUser(ctx context.Context, id int64) (User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.NewError(shared.ErrAuthenticationRequired, "account no longer exists")
		}
		return User{}, err
	}
	if !user.IsActive {
		return User{}, shared.NewError(shared.ErrAuthenticationRequired, "account is disabled")
	}
	return user, nil
}

func activeOnly(user User) (User, error) {
	if !user.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// checkPassword compares a bcrypt hash. PHP's password_hash writes the $2y$
// prefix, which is the same algorithm as $2a$.
func checkPassword(hash, password string) bool {
	if strings.HasPrefix(hash, "$2y$") {
		hash = "$2a$" + strings.TrimPrefix(hash, "$2y$")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
