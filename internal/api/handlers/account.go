package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/diagrammaton/server/internal/domain/account"
	"github.com/diagrammaton/server/internal/domain/generation"
)

// AccountService is the license/API-key surface of the account store.
type AccountService interface {
	LicenseKey(ctx context.Context, userID string) (*account.License, error)
	GenerateLicenseKey(ctx context.Context, userID string) (*account.License, error)
	SetAPIKeys(ctx context.Context, userID string, openaiKey, anthropicKey *string) error
	APIKeys(ctx context.Context, userID string) (*account.APIKeyInfo, error)
}

// AccountHandler serves the bearer-protected /api/account routes plus the
// public license validation endpoint.
type AccountHandler struct {
	svc AccountService
	ids generation.IdentityResolver
	log *slog.Logger
}

func NewAccountHandler(svc AccountService, ids generation.IdentityResolver, log *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, ids: ids, log: log}
}

type licenseResponse struct {
	Key       *string `json:"key"`
	ExpiresAt *string `json:"expiresAt,omitempty"`
}

// GetLicense returns the caller's current active key; Key is null when
// none has been generated yet.
func (h *AccountHandler) GetLicense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r.Context())
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	lic, err := h.svc.LicenseKey(r.Context(), userID)
	if err != nil {
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLicenseResponse(lic))
}

// GenerateLicense issues a fresh key, revoking any prior ones.
func (h *AccountHandler) GenerateLicense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r.Context())
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	lic, err := h.svc.GenerateLicenseKey(r.Context(), userID)
	if err != nil {
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLicenseResponse(lic))
}

type validateRequest struct {
	LicenseKey string `json:"licenseKey"`
}

type validateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ValidateLicense is public: the plugin calls it before storing a key.
// An invalid key is a well-formed negative response, not an error page.
func (h *AccountHandler) ValidateLicense(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LicenseKey == "" {
		writeErrorMessage(w, http.StatusBadRequest, "License key is required")
		return
	}

	if _, err := h.ids.Resolve(r.Context(), req.LicenseKey); err != nil {
		writeJSON(w, http.StatusOK, validateResponse{Success: false, Message: "License key is invalid"})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Success: true, Message: "License key is valid"})
}

type apiKeysRequest struct {
	OpenAIAPIKey    *string `json:"openaiApiKey"`
	AnthropicAPIKey *string `json:"anthropicApiKey"`
}

type apiKeysResponse struct {
	OpenAILastFour    string `json:"openaiApiKeyLastFour"`
	AnthropicLastFour string `json:"anthropicApiKeyLastFour"`
}

// GetAPIKeys returns the stored key fingerprints only.
func (h *AccountHandler) GetAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r.Context())
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	info, err := h.svc.APIKeys(r.Context(), userID)
	if err != nil {
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, apiKeysResponse{
		OpenAILastFour:    info.OpenAILastFour,
		AnthropicLastFour: info.AnthropicLastFour,
	})
}

// PutAPIKeys stores the supplied provider keys; omitted fields keep their
// current value.
func (h *AccountHandler) PutAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r.Context())
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req apiKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OpenAIAPIKey == nil && req.AnthropicAPIKey == nil {
		writeErrorMessage(w, http.StatusBadRequest, "At least one provider key is required")
		return
	}

	if err := h.svc.SetAPIKeys(r.Context(), userID, req.OpenAIAPIKey, req.AnthropicAPIKey); err != nil {
		writeFault(w, h.log, err)
		return
	}

	info, err := h.svc.APIKeys(r.Context(), userID)
	if err != nil {
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, apiKeysResponse{
		OpenAILastFour:    info.OpenAILastFour,
		AnthropicLastFour: info.AnthropicLastFour,
	})
}

func toLicenseResponse(lic *account.License) licenseResponse {
	if lic == nil {
		return licenseResponse{}
	}
	resp := licenseResponse{Key: &lic.Key}
	if !lic.ExpiresAt.IsZero() {
		formatted := lic.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &formatted
	}
	return resp
}
