package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"marketlens/internal/apperr"
	"marketlens/internal/config"
	"marketlens/internal/indexer"
	"marketlens/internal/middleware"
)

// IndexConsumer runs index tasks. It is the only writer to the vector store,
// so the NSQ consumer for it must keep MaxInFlight at 1.
type IndexConsumer struct {
	indexer       Indexer
	failures      FailureRecorder
	defaultFolder string
	maxAttempts   uint16
}

func NewIndexConsumer(ix Indexer, failures FailureRecorder, defaultFolder string, maxAttempts uint16) *IndexConsumer {
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	return &IndexConsumer{
		indexer:       ix,
		failures:      failures,
		defaultFolder: defaultFolder,
		maxAttempts:   maxAttempts,
	}
}

func (h *IndexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task IndexTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	folder := task.Folder
	if folder == "" {
		folder = h.defaultFolder
	}

	summary, err := h.run(ctx, task.Mode, folder)
	if err == nil {
		slog.InfoContext(ctx, "index task completed",
			"folder", folder, "mode", task.Mode,
			"documents", summary.Documents, "skipped", summary.Skipped, "chunks", summary.Chunks)
		return nil
	}

	// Transient failures are requeued by NSQ until attempts run out.
	if apperr.IsTransient(err) && m.Attempts < h.maxAttempts {
		slog.WarnContext(ctx, "index task failed, requeueing", "folder", folder, "attempt", m.Attempts, "error", err)
		return err
	}

	slog.ErrorContext(ctx, "index task failed", "folder", folder, "attempt", m.Attempts, "error", err)
	if h.failures != nil {
		if recErr := h.failures.Record(ctx, config.TopicIndexSync, m.Body, err); recErr != nil {
			slog.ErrorContext(ctx, "failed to record failed job", "error", recErr)
			return recErr
		}
	}
	return nil
}

func (h *IndexConsumer) run(ctx context.Context, mode, folder string) (indexer.Summary, error) {
	switch mode {
	case "", ModeSync:
		return h.indexer.Sync(ctx, folder)
	case ModeReindex:
		return h.indexer.Reindex(ctx, folder)
	case ModeSyncIfEmpty:
		return h.indexer.SyncIfEmpty(ctx, folder)
	}
	return indexer.Summary{}, apperr.Validation("worker.IndexConsumer", fmt.Sprintf("unknown index mode %q", mode))
}
