package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"marketlens/internal/apperr"
	"marketlens/internal/config"
	"marketlens/internal/indexer"
)

// Index modes carried by IndexTask.
const (
	ModeSync        = "sync"
	ModeReindex     = "reindex"
	ModeSyncIfEmpty = "sync_if_empty"
)

// IndexTask asks the indexing consumer to process a document folder.
type IndexTask struct {
	Folder        string `json:"folder"`
	Mode          string `json:"mode"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type Indexer interface {
	Sync(ctx context.Context, folder string) (indexer.Summary, error)
	Reindex(ctx context.Context, folder string) (indexer.Summary, error)
	SyncIfEmpty(ctx context.Context, folder string) (indexer.Summary, error)
}

type FailureRecorder interface {
	Record(ctx context.Context, topic string, payload []byte, cause error) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Enqueue publishes task on the index topic.
func Enqueue(pub TaskPublisher, task IndexTask) error {
	if task.Mode == "" {
		task.Mode = ModeSync
	}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal index task: %w", err)
	}
	if err := pub.Publish(config.TopicIndexSync, body); err != nil {
		return apperr.Transient("worker.Enqueue", err)
	}
	return nil
}
