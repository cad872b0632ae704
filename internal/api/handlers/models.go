package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/diagrammaton/server/internal/domain/generation"
	"github.com/diagrammaton/server/internal/domain/models"
)

// CatalogService serves per-user model lists.
type CatalogService interface {
	ModelList(ctx context.Context, keys models.CatalogKeys) (models.List, error)
}

// ModelsHandler serves POST /api/models: the model picker contents for
// the license key's owner.
type ModelsHandler struct {
	ids     generation.IdentityResolver
	catalog CatalogService
	log     *slog.Logger
}

func NewModelsHandler(ids generation.IdentityResolver, catalog CatalogService, log *slog.Logger) *ModelsHandler {
	return &ModelsHandler{ids: ids, catalog: catalog, log: log}
}

type modelsRequest struct {
	LicenseKey string `json:"licenseKey"`
}

func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	var req modelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LicenseKey == "" {
		writeErrorMessage(w, http.StatusBadRequest, "License key is required")
		return
	}

	id, err := h.ids.Resolve(r.Context(), req.LicenseKey)
	if err != nil {
		writeFault(w, h.log, err)
		return
	}

	list, err := h.catalog.ModelList(r.Context(), models.CatalogKeys{
		UserID:       id.ID,
		OpenAIKey:    id.OpenAIAPIKey,
		AnthropicKey: id.AnthropicAPIKey,
	})
	if err != nil {
		writeFault(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
