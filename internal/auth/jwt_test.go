package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParseJWT_ValidToken(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "tenant-a", "Operator")

	identity, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if identity.TenantID != "tenant-a" {
		t.Fatalf("unexpected tenant: %q", identity.TenantID)
	}
	if identity.Role != RoleOperator {
		t.Fatalf("role not normalized: %q", identity.Role)
	}
	if identity.Subject != "user-1" {
		t.Fatalf("unexpected subject: %q", identity.Subject)
	}
}

func TestParseJWT_Rejections(t *testing.T) {
	secret := []byte("test-secret")

	if _, err := ParseJWT("", secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token: expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseJWT(mustToken(t, []byte("other-secret"), "tenant-a", "viewer"), secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseJWT(mustToken(t, secret, "", "viewer"), secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing tenant: expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseJWT(mustToken(t, secret, "tenant-a", "superuser"), secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown role: expected ErrInvalidToken, got %v", err)
	}
}

func TestParseJWT_ExpiredBeyondLeeway(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		TenantID: "tenant-a",
		Role:     "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParseJWT(signed, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: expected ErrInvalidToken, got %v", err)
	}
}

func TestParseJWT_WrongSigningMethod(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		TenantID: "tenant-a",
		Role:     "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParseJWT(signed, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS512 token: expected ErrInvalidToken, got %v", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	if role, ok := NormalizeRole("  Admin "); !ok || role != RoleAdmin {
		t.Fatalf("expected admin, got %q ok=%v", role, ok)
	}
	if _, ok := NormalizeRole("root"); ok {
		t.Fatal("unknown role accepted")
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleAdmin, RoleViewer) {
		t.Fatal("admin must satisfy viewer")
	}
	if RoleAtLeast(RoleViewer, RoleOperator) {
		t.Fatal("viewer must not satisfy operator")
	}
	if RoleAtLeast(Role("root"), RoleViewer) {
		t.Fatal("unknown role must grant nothing")
	}
}
