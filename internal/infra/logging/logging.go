// Package logging builds the process-wide structured logger. Secret-bearing
// attributes are scrubbed at the handler so a careless call site cannot leak
// a key into the log sink.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// secretAttrs are attribute keys whose values are always redacted.
var secretAttrs = map[string]bool{
	"apikey":     true,
	"licensekey": true,
	"password":   true,
	"token":      true,
}

// New creates a JSON slog.Logger writing to out.
func New(out io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if secretAttrs[strings.ToLower(a.Key)] {
				a.Value = slog.StringValue("[redacted]")
			}
			return a
		},
	})
	return slog.New(handler)
}

// LastFour reduces a secret to a loggable fingerprint.
func LastFour(secret string) string {
	if secret == "" {
		return "none"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "..." + secret[len(secret)-4:]
}
