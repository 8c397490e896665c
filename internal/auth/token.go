package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agrohub/agrohub/internal/shared"
)

// DefaultTokenTTL applies when no TTL is configured.
const DefaultTokenTTL = 12 * time.Hour

// Claims is the bearer token payload.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for user.
func (t *TokenIssuer) Issue(user User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns its claims. Any failure is reported as
// shared.ErrAuthenticationRequired.
func (t *TokenIssuer) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, shared.NewError(shared.ErrAuthenticationRequired, "invalid or expired token")
	}
	if claims.UserID <= 0 {
		return Claims{}, shared.NewError(shared.ErrAuthenticationRequired, "invalid or expired token")
	}
	return claims, nil
}
