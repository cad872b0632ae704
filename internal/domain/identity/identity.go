// Package identity resolves a license key into the account it belongs to.
// Thin but load-bearing: every generation request passes through here
// before any provider credential is touched.
package identity

import (
	"context"
	"database/sql"
	"encoding/base64"
	"time"

	"github.com/diagrammaton/server/internal/domain/fault"
)

// LicensedIdentity is the read-only view of an account reached through a
// valid license key. API keys are carried only for the duration of one
// request and never logged.
type LicensedIdentity struct {
	ID              string
	Email           string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// Resolver maps license keys to identities against the account store.
type Resolver struct {
	db  *sql.DB
	now func() time.Time
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db, now: time.Now}
}

// Resolve validates the license key and returns the owning identity.
// Clients send keys base64-encoded; a key that doesn't decode is tried
// as-is. Revoked and expired keys are reported identically to unknown
// ones so probing can't distinguish them.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*LicensedIdentity, error) {
	key := decodeKey(rawKey)

	var (
		licenseID string
		userID    string
		revoked   bool
		expiresAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, revoked, expires_at
		FROM license_keys
		WHERE key = ?
	`, key).Scan(&licenseID, &userID, &revoked, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindInvalidLicenseKey)
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindUnexpected, err)
	}

	if revoked {
		return nil, fault.New(fault.KindInvalidLicenseKey).With("reason", "revoked")
	}
	if expiresAt.Valid && isExpired(expiresAt.String, r.now()) {
		return nil, fault.New(fault.KindInvalidLicenseKey).With("reason", "expired")
	}

	var (
		id           LicensedIdentity
		openaiKey    sql.NullString
		anthropicKey sql.NullString
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT id, email, openai_api_key, anthropic_api_key
		FROM users
		WHERE id = ?
	`, userID).Scan(&id.ID, &id.Email, &openaiKey, &anthropicKey)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindUserNotFound).With("licenseID", licenseID)
	}
	if err != nil {
		return nil, fault.Wrap(fault.KindUnexpected, err)
	}
	id.OpenAIAPIKey = openaiKey.String
	id.AnthropicAPIKey = anthropicKey.String

	// Usage counter is bookkeeping only; a failed update never blocks
	// the request.
	r.db.ExecContext(ctx, `UPDATE license_keys SET uses = uses + 1 WHERE id = ?`, licenseID) //nolint:errcheck

	return &id, nil
}

func decodeKey(raw string) string {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) > 0 {
		return string(decoded)
	}
	return raw
}

// isExpired parses the stored timestamp in either RFC3339 or SQLite's
// datetime('now') layout. Unparseable timestamps count as expired.
func isExpired(stored string, now time.Time) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, stored); err == nil {
			return t.Before(now)
		}
	}
	return true
}
