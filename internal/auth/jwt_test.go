package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParse_ValidHS256(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{
		UserID:    "u1",
		Username:  "alice",
		Roles:     []string{"ENGINEER"},
		SessionID: "s1",
	}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" || claims.SessionID != "s1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.HasRole("ENGINEER") || claims.HasRole("PROJECT_MANAGER") {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
}

func TestParse_RejectsUnexpectedAlgorithm(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		UserID: "u1",
		Roles:  []string{"PROJECT_MANAGER"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "u1",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := Parse(secret, tokenStr); err == nil {
		t.Fatalf("expected parse to reject non-HS256 token")
	}
}

func TestParse_RejectsExpiredAndWrongSecret(t *testing.T) {
	secret := []byte("test-secret")
	expired, err := Issue(secret, Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(secret, expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	valid, err := Issue(secret, Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse([]byte("other"), valid); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "secret1") || CheckPassword(hash, "secret2") {
		t.Fatal("CheckPassword returned unexpected result")
	}
}
