package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/diagrammaton/server/internal/domain/diagram"
	"github.com/diagrammaton/server/internal/domain/generation"
)

// GenerationService is the pipeline behind the generate endpoint.
type GenerationService interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Outcome, error)
}

// GenerateHandler serves POST /api/generate.
type GenerateHandler struct {
	svc GenerationService
	log *slog.Logger
}

func NewGenerateHandler(svc GenerationService, log *slog.Logger) *GenerateHandler {
	return &GenerateHandler{svc: svc, log: log}
}

type generateRequest struct {
	LicenseKey         string `json:"licenseKey"`
	Action             string `json:"action"`
	DiagramDescription string `json:"diagramDescription"`
	DiagramData        string `json:"diagramData"`
	Instructions       string `json:"instructions"`
	Model              string `json:"model"`
	Stream             bool   `json:"stream"`
}

// Generate runs one diagram request. Buffered responses are a JSON
// envelope; streaming responses are raw token text flushed as received.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LicenseKey == "" {
		writeErrorMessage(w, http.StatusBadRequest, "License key is required")
		return
	}

	outcome, err := h.svc.Generate(r.Context(), generation.Request{
		LicenseKey:   req.LicenseKey,
		Action:       diagram.Action(req.Action),
		Description:  req.DiagramDescription,
		DiagramData:  req.DiagramData,
		Instructions: req.Instructions,
		Model:        req.Model,
		ClientIP:     clientIP(r),
		Stream:       req.Stream,
	})
	if err != nil {
		writeFault(w, h.log, err)
		return
	}

	if outcome.Stream != nil {
		h.streamTokens(w, outcome)
		return
	}

	resp := outcome.Response
	if len(resp.Steps) > 0 {
		writeJSON(w, http.StatusOK, envelope{Type: "steps", Data: resp.Steps})
		return
	}
	// The model declined with an explanation; that is still a success.
	writeJSON(w, http.StatusOK, envelope{Type: "message", Data: *resp.Message})
}

// streamTokens forwards provider tokens as they arrive. The status line
// is held back until the first token so a pre-output failure can still
// report its real status; a mid-stream failure can only be logged since
// the response is already committed.
func (h *GenerateHandler) streamTokens(w http.ResponseWriter, outcome *generation.Outcome) {
	fl, _ := w.(http.Flusher)
	wroteHeader := false

	for tok := range outcome.Stream.Tokens {
		if !wroteHeader {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			wroteHeader = true
		}
		io.WriteString(w, tok) //nolint:errcheck
		if fl != nil {
			fl.Flush()
		}
	}

	if err := outcome.Stream.Err(); err != nil {
		if !wroteHeader {
			writeFault(w, h.log, err)
			return
		}
		h.log.Error("stream failed after first byte", "error", err)
		return
	}
	if !wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}
