package auth

import (
	"testing"
	"time"

	"callbridge/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "callbridge",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := testManager(t)

	now := time.Now().UTC()
	tok, err := m.Issue(now, "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected token string")
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Operator != "alice" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := testManager(t)

	now := time.Now().UTC()
	tok, err := m.Issue(now, "alice", RoleViewer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(tok, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expired token rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := testManager(t)
	other, _ := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "callbridge", AccessTokenTTL: 15 * time.Minute})

	now := time.Now().UTC()
	tok, err := other.Issue(now, "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature rejected")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	m := testManager(t)
	other, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "someone-else", AccessTokenTTL: 15 * time.Minute})

	now := time.Now().UTC()
	tok, err := other.Issue(now, "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected issuer rejected")
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	m := testManager(t)

	// Hand-craft a token with a role Issue would refuse.
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "callbridge",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			ID:        "jti-1",
		},
		Operator: "alice",
		Role:     "root",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected unknown role rejected")
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	m := testManager(t)
	if _, err := m.Issue(time.Now(), "alice", "root"); err == nil {
		t.Fatalf("expected unknown role rejected")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}
