package research

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"marketlens/internal/apperr"
	"marketlens/internal/middleware"
	"marketlens/internal/research"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req research.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, apperr.Validation("research.Draft", "invalid JSON body"))
		return
	}

	d, err := h.service.Draft(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "draft failed", "error", err)
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, http.StatusOK, d)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var fb Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		h.writeError(ctx, w, apperr.Validation("research.Finalize", "invalid JSON body"))
		return
	}

	final, err := h.service.Finalize(ctx, fb)
	if err != nil {
		slog.ErrorContext(ctx, "finalize failed", "draft_id", fb.DraftID, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, http.StatusOK, final)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, err := h.service.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, http.StatusOK, d)
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
