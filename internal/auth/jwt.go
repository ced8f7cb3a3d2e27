package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every token rejection so callers cannot probe for
// which check failed.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the token payload issued by the portal's login service.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// tokenLeeway absorbs clock drift between the login service and this API.
const tokenLeeway = 30 * time.Second

// ParseJWT validates an HS256 token and returns the caller identity.
func ParseJWT(raw string, secret []byte) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}
	if len(secret) == 0 {
		return Identity{}, errors.New("auth: signing secret not configured")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing tenant", ErrInvalidToken)
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Identity{TenantID: claims.TenantID, Role: role, Subject: claims.Subject}, nil
}
