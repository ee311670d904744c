package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-call-router/internal/config"
)

func newTestManager(t *testing.T, now time.Time) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: 15 * time.Minute})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	m.now = func() time.Time { return now }
	return m
}

func TestNewManager_RequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	m, err := NewManager(config.AuthConfig{JWTSecret: "s"})
	if err != nil || m.ttl != time.Hour {
		t.Fatalf("default ttl not applied: %v %v", m, err)
	}
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	m := newTestManager(t, now)

	tok, err := m.Issue("user-1")
	if err != nil || tok == "" {
		t.Fatalf("issue: %q %v", tok, err)
	}

	m.now = func() time.Time { return now.Add(time.Minute) }
	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("exp = %v", claims.ExpiresAt)
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	m := newTestManager(t, now)
	tok, _ := m.Issue("u")

	m.now = func() time.Time { return now.Add(time.Hour) }
	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) || !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("want expired invalid token, got %v", err)
	}
}

func TestVerify_WrongSecretAndGarbage(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, now)
	other, _ := NewManager(config.AuthConfig{JWTSecret: "another-secret-value"})
	tok, _ := other.Issue("u")

	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign token should fail: %v", err)
	}
	if _, err := m.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage should fail: %v", err)
	}
}

func TestVerify_MissingUserID(t *testing.T) {
	m := newTestManager(t, time.Now())
	tok, _ := m.Issue("")
	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("subject-less token should fail: %v", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager(t, time.Now())
	claims := Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS512 token should be rejected: %v", err)
	}
}
