// Handler helper functions shared across the API surface.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/diagrammaton/server/internal/api/ctxkeys"
	"github.com/diagrammaton/server/internal/domain/fault"
)

// envelope is the uniform response wrapper: "steps" and "message" carry
// Data, "error" carries Message.
type envelope struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// getUserID retrieves the authenticated user id injected by the auth
// middleware.
func getUserID(ctx context.Context) (string, error) {
	userID := ctxkeys.Value(ctx, ctxkeys.UserID)
	if userID == "" {
		return "", fmt.Errorf("user_id not found in context")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// writeFault converts any error to its taxonomy kind and writes the fixed
// status and public message. The cause and context go to the log only.
func writeFault(w http.ResponseWriter, log *slog.Logger, err error) {
	f := fault.From(err)
	attrs := []any{"kind", string(f.Kind), "status", f.HTTPStatus()}
	for k, v := range f.Context {
		attrs = append(attrs, k, v)
	}
	if cause := f.Unwrap(); cause != nil {
		attrs = append(attrs, "cause", cause.Error())
	}
	log.Error("request failed", attrs...)

	writeJSON(w, f.HTTPStatus(), envelope{Type: "error", Message: f.Message()})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Type: "error", Message: message})
}

// clientIP is the first X-Forwarded-For value when present, else the
// remote address without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
