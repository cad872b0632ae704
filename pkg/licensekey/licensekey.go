// Package licensekey generates plugin license keys.
// Keys are 18 URL-safe characters, matching what existing plugin installs
// already store, so the length must not change.
package licensekey

import (
	"crypto/rand"
	"fmt"
)

// Length is the fixed license key length.
const Length = 18

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// New generates a random license key.
func New() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("licensekey: read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
