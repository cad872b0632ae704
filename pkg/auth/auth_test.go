package auth

import (
	"strings"
	"testing"
	"time"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals the plaintext")
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Error("correct password did not verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("wrong password verified")
	}
}

func TestVerifyPassword_InvalidHash_ReturnsFalse(t *testing.T) {
	t.Parallel()

	if VerifyPassword("not-a-bcrypt-hash", "anything") {
		t.Error("invalid hash should not verify")
	}
}

func TestGenerateJWT_ParseRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT("user-123")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT failed: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want user-123", claims.UserID)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Error("token should expire in the future")
	}
}

func TestParseJWT_TamperedToken_Fails(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT("user-123")
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	parts := strings.Split(token, ".")
	parts[2] = "AAAA" + parts[2][4:]
	if _, err := ParseJWT(strings.Join(parts, ".")); err == nil {
		t.Error("tampered token should not parse")
	}
}

func TestParseJWT_EmptyToken_Fails(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := ParseJWT(""); err == nil {
		t.Error("empty token should not parse")
	}
}

func TestParseJWTExpiry_Defaults(t *testing.T) {
	t.Parallel()

	if got := parseJWTExpiry(""); got != DefaultJWTExpiry*time.Hour {
		t.Errorf("empty expiry = %v", got)
	}
	if got := parseJWTExpiry("garbage"); got != DefaultJWTExpiry*time.Hour {
		t.Errorf("invalid expiry = %v", got)
	}
	if got := parseJWTExpiry("2"); got != 2*time.Hour {
		t.Errorf("expiry 2 = %v", got)
	}
}
