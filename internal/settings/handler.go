package settings

import (
	"context"
	"encoding/json"
	"net/http"

	"marketlens/internal/apperr"
	"marketlens/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": redact(s)})
}

// UpdateSettings merges the body into the stored settings and answers with
// the effective result.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(r.Context(), w, apperr.Validation("settings.Update", err.Error()))
		return
	}
	s, err := h.svc.Apply(r.Context(), p)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": redact(s)})
}

// Keys are reported as set or unset, never echoed.
func redact(s *Settings) map[string]interface{} {
	return map[string]interface{}{
		"max_web_results":    s.MaxWebResults,
		"max_doc_chunks":     s.MaxDocChunks,
		"gemini_api_key_set": s.GeminiAPIKey != "",
		"tavily_api_key_set": s.TavilyAPIKey != "",
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    apperr.Code(err),
			"message": err.Error(),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	json.NewEncoder(w).Encode(resp)
}
