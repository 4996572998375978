package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"marketlens/internal/middleware"
)

// Counter is satisfied by every repository and store that can report a size.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	documents  Counter
	chunks     Counter
	drafts     Counter
	failedJobs Counter
}

func NewHandler(documents, chunks, drafts, failedJobs Counter) *Handler {
	return &Handler{documents: documents, chunks: chunks, drafts: drafts, failedJobs: failedJobs}
}

type StatsResponse struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Drafts     int `json:"drafts"`
	FailedJobs int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var resp StatsResponse
	for _, c := range []struct {
		name string
		src  Counter
		dst  *int
	}{
		{"documents", h.documents, &resp.Documents},
		{"chunks", h.chunks, &resp.Chunks},
		{"drafts", h.drafts, &resp.Drafts},
		{"failed_jobs", h.failedJobs, &resp.FailedJobs},
	} {
		n, err := c.src.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count "+c.name, "error", err)
			h.writeError(ctx, w, "STORAGE_ERROR", "failed to count "+c.name, http.StatusServiceUnavailable)
			return
		}
		*c.dst = n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
