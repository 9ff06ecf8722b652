package util

import (
	"testing"
	"time"

	"github.com/studify-app/studify_backend/models"
)

func TestJwtGenerateAndParse(t *testing.T) {
	JWTSecret = "test-secret"

	user := models.User{ID: 42, Email: "student@studify.app", Role: "user"}
	token, err := JwtGenerate(user, "42")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims["id"] != "42" {
		t.Errorf("id claim = %v, want 42", claims["id"])
	}
	if claims["email"] != user.Email {
		t.Errorf("email claim = %v, want %v", claims["email"], user.Email)
	}

	// bearer prefix is tolerated
	if _, err := ParseJWT("Bearer " + token); err != nil {
		t.Errorf("parse with bearer prefix: %v", err)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	JWTSecret = "test-secret"
	token, err := JwtGenerate(models.User{ID: 1}, "1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	JWTSecret = "other-secret"
	if _, err := ParseJWT(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestIsTokenValidAfterPasswordChange(t *testing.T) {
	JWTSecret = "test-secret"

	user := models.User{ID: 7}
	token, err := JwtGenerate(user, "7")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err := IsTokenValid(claims, user); err != nil {
		t.Errorf("fresh token should be valid: %v", err)
	}

	user.PasswordChangedAt = time.Now().Add(time.Hour)
	if err := IsTokenValid(claims, user); err == nil {
		t.Error("token issued before password change should be rejected")
	}
}
