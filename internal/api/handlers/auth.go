package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diagrammaton/server/internal/domain/account"
)

// AuthService is the registration/login surface of the account store.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*account.AuthResult, error)
	Login(ctx context.Context, email, password string) (*account.AuthResult, error)
}

// AuthHandler serves POST /auth/register and POST /auth/login.
type AuthHandler struct {
	svc AuthService
	log *slog.Logger
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

const minPasswordLength = 8

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	if len(req.Password) < minPasswordLength {
		writeErrorMessage(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	result, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrEmailAlreadyExists) {
			writeErrorMessage(w, http.StatusConflict, "Email already registered")
			return
		}
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, UserID: result.UserID})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			writeErrorMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, UserID: result.UserID})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeErrorMessage(w, http.StatusBadRequest, "A valid email is required")
		return req, false
	}
	if req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Password is required")
		return req, false
	}
	return req, true
}
