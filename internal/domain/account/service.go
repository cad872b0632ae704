// Package account implements registration, login, license keys, and
// provider API key storage. Passwords are bcrypt-hashed and sessions are
// stateless JWTs.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/diagrammaton/server/pkg/auth"
	"github.com/diagrammaton/server/pkg/licensekey"
)

// ErrInvalidCredentials is returned by Login for both unknown email and
// wrong password, so responses never reveal whether an email exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailAlreadyExists is returned by Register when the email is taken.
var ErrEmailAlreadyExists = errors.New("email already registered")

// LicenseExpiry is how long a freshly generated license key is valid.
const LicenseExpiry = 365 * 24 * time.Hour

// AuthResult is returned after a successful Register or Login.
type AuthResult struct {
	Token  string
	UserID string
}

// License is the caller-visible view of a license key.
type License struct {
	Key       string
	ExpiresAt time.Time
}

// APIKeyInfo exposes only the last four characters of each stored key.
type APIKeyInfo struct {
	OpenAILastFour    string
	AnthropicLastFour string
}

// Service is the account store backed by SQLite.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Register creates a user and returns a session token. The plaintext
// password is never stored.
func (s *Service) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES (?, ?, ?)
	`, userID, email, hash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := pkgauth.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	return &AuthResult{Token: token, UserID: userID}, nil
}

// Login verifies credentials and returns a session token. Any failure
// collapses to ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var userID, passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM users WHERE email = ?
	`, email).Scan(&userID, &passwordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !pkgauth.VerifyPassword(passwordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := pkgauth.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	return &AuthResult{Token: token, UserID: userID}, nil
}

// LicenseKey returns the user's current active license key, or nil when
// none exists.
func (s *Service) LicenseKey(ctx context.Context, userID string) (*License, error) {
	var key string
	var expiresAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT key, expires_at FROM license_keys
		WHERE user_id = ? AND revoked = 0
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&key, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query license key: %w", err)
	}

	lic := &License{Key: key}
	if expiresAt.Valid {
		if t, perr := time.Parse(time.RFC3339, expiresAt.String); perr == nil {
			lic.ExpiresAt = t
		}
	}
	return lic, nil
}

// GenerateLicenseKey issues a fresh key for the user, revoking any prior
// ones so exactly one key is active at a time.
func (s *Service) GenerateLicenseKey(ctx context.Context, userID string) (*License, error) {
	key, err := licensekey.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate license key: %w", err)
	}
	expiresAt := s.now().Add(LicenseExpiry).UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		UPDATE license_keys SET revoked = 1 WHERE user_id = ?
	`, userID); err != nil {
		return nil, fmt.Errorf("failed to revoke prior keys: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO license_keys (id, user_id, key, expires_at)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), userID, key, expiresAt.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to insert license key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit license key: %w", err)
	}
	return &License{Key: key, ExpiresAt: expiresAt}, nil
}

// SetAPIKeys stores the provider keys that were supplied; a nil pointer
// leaves the existing value untouched. Last-four fingerprints are stored
// alongside for display.
func (s *Service) SetAPIKeys(ctx context.Context, userID string, openaiKey, anthropicKey *string) error {
	if openaiKey != nil {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE users SET openai_api_key = ?, openai_api_key_last_four = ? WHERE id = ?
		`, nullable(*openaiKey), nullable(lastFour(*openaiKey)), userID); err != nil {
			return fmt.Errorf("failed to store openai key: %w", err)
		}
	}
	if anthropicKey != nil {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE users SET anthropic_api_key = ?, anthropic_api_key_last_four = ? WHERE id = ?
		`, nullable(*anthropicKey), nullable(lastFour(*anthropicKey)), userID); err != nil {
			return fmt.Errorf("failed to store anthropic key: %w", err)
		}
	}
	return nil
}

// APIKeys returns the stored key fingerprints; full keys never leave the
// store through this path.
func (s *Service) APIKeys(ctx context.Context, userID string) (*APIKeyInfo, error) {
	var openaiLastFour, anthropicLastFour sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT openai_api_key_last_four, anthropic_api_key_last_four
		FROM users WHERE id = ?
	`, userID).Scan(&openaiLastFour, &anthropicLastFour)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	return &APIKeyInfo{
		OpenAILastFour:    openaiLastFour.String,
		AnthropicLastFour: anthropicLastFour.String,
	}, nil
}

func lastFour(key string) string {
	if len(key) < 4 {
		return key
	}
	return key[len(key)-4:]
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
