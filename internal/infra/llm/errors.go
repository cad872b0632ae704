package llm

import (
	"errors"
	"fmt"
)

// ErrAuth marks a provider rejection of the user's API key. Callers remap
// it to an actionable invalid-key message instead of a generic provider
// error.
var ErrAuth = errors.New("provider rejected API key")

// statusError converts a non-2xx provider response into an error,
// preserving the auth signal for 401/403.
func statusError(provider string, status int, body string) error {
	if status == 401 || status == 403 {
		return fmt.Errorf("%s: status %d: %w", provider, status, ErrAuth)
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("%s: status %d: %s", provider, status, body)
}
