package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/diagrammaton/server/internal/infra/sqlite"
	"github.com/diagrammaton/server/pkg/licensekey"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	return NewService(db)
}

func TestService_Register_Login_RoundTrip(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "a@example.com", "hunter22')")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Token == "" || reg.UserID == "" {
		t.Fatalf("AuthResult incomplete: %+v", reg)
	}

	login, err := s.Login(ctx, "a@example.com", "hunter22')")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.UserID != reg.UserID {
		t.Errorf("login user = %q, want %q", login.UserID, reg.UserID)
	}

	// Plaintext must never be stored.
	var hash string
	if err := s.db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, reg.UserID).Scan(&hash); err != nil {
		t.Fatalf("query hash: %v", err)
	}
	if hash == "hunter22')" {
		t.Error("password stored in plaintext")
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "a@example.com", "pw"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := s.Register(ctx, "a@example.com", "pw2")
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestService_Login_WrongPassword(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "a@example.com", "correct"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := s.Login(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "correct"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}
}

func TestService_GenerateLicenseKey_RevokesPriorKeys(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	first, err := s.GenerateLicenseKey(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("GenerateLicenseKey failed: %v", err)
	}
	if len(first.Key) != licensekey.Length {
		t.Errorf("key length = %d, want %d", len(first.Key), licensekey.Length)
	}
	if until := time.Until(first.ExpiresAt); until < 364*24*time.Hour {
		t.Errorf("expiry too soon: %v", first.ExpiresAt)
	}

	second, err := s.GenerateLicenseKey(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("second GenerateLicenseKey failed: %v", err)
	}
	if second.Key == first.Key {
		t.Error("regenerated key should differ")
	}

	current, err := s.LicenseKey(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("LicenseKey failed: %v", err)
	}
	if current == nil || current.Key != second.Key {
		t.Errorf("active key = %+v, want %q", current, second.Key)
	}

	var activeCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM license_keys WHERE user_id = ? AND revoked = 0`, reg.UserID).Scan(&activeCount); err != nil {
		t.Fatalf("count active keys: %v", err)
	}
	if activeCount != 1 {
		t.Errorf("active keys = %d, want 1", activeCount)
	}
}

func TestService_LicenseKey_NoneYet(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	lic, err := s.LicenseKey(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("LicenseKey failed: %v", err)
	}
	if lic != nil {
		t.Errorf("expected nil license, got %+v", lic)
	}
}

func TestService_SetAPIKeys_StoresLastFour(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	openai := "sk-proj-abcd1234"
	if err := s.SetAPIKeys(ctx, reg.UserID, &openai, nil); err != nil {
		t.Fatalf("SetAPIKeys failed: %v", err)
	}

	info, err := s.APIKeys(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("APIKeys failed: %v", err)
	}
	if info.OpenAILastFour != "1234" {
		t.Errorf("OpenAILastFour = %q", info.OpenAILastFour)
	}
	if info.AnthropicLastFour != "" {
		t.Errorf("AnthropicLastFour = %q, want empty", info.AnthropicLastFour)
	}

	// Updating one provider leaves the other untouched.
	anthropic := "sk-ant-wxyz9876"
	if err := s.SetAPIKeys(ctx, reg.UserID, nil, &anthropic); err != nil {
		t.Fatalf("SetAPIKeys failed: %v", err)
	}
	info, err = s.APIKeys(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("APIKeys failed: %v", err)
	}
	if info.OpenAILastFour != "1234" || info.AnthropicLastFour != "9876" {
		t.Errorf("info = %+v", info)
	}

	var stored sql.NullString
	if err := s.db.QueryRow(`SELECT openai_api_key FROM users WHERE id = ?`, reg.UserID).Scan(&stored); err != nil {
		t.Fatalf("query stored key: %v", err)
	}
	if stored.String != openai {
		t.Errorf("stored key = %q", stored.String)
	}
}
