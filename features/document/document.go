package document

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"marketlens/internal/apperr"
	"marketlens/internal/middleware"
	"marketlens/internal/worker"
)

// Document is a manifest row: a file whose chunks are fully persisted.
type Document struct {
	DocID     string    `json:"doc_id"`
	Source    string    `json:"source"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Pages     int       `json:"pages"`
	Chunks    int       `json:"chunks"`
	IndexedAt time.Time `json:"indexed_at"`
}

type Repository interface {
	List(ctx context.Context) ([]Document, error)
	Get(ctx context.Context, docID string) (*Document, error)
	Delete(ctx context.Context, docID string) error
	Count(ctx context.Context) (int, error)
}

type ChunkStore interface {
	DeleteByDocID(ctx context.Context, docID string) error
}

type Service struct {
	repo          Repository
	chunks        ChunkStore
	pub           worker.TaskPublisher
	defaultFolder string
}

func NewService(repo Repository, chunks ChunkStore, pub worker.TaskPublisher, defaultFolder string) *Service {
	return &Service{repo: repo, chunks: chunks, pub: pub, defaultFolder: defaultFolder}
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Storage("document.List", err)
	}
	return docs, nil
}

func (s *Service) Get(ctx context.Context, docID string) (*Document, error) {
	doc, err := s.repo.Get(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("document.Get", "document not found")
		}
		return nil, apperr.Storage("document.Get", err)
	}
	return doc, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Sync queues an index run over folder, or the configured folder when empty.
func (s *Service) Sync(ctx context.Context, folder string, force bool) (worker.IndexTask, error) {
	if folder == "" {
		folder = s.defaultFolder
	}
	task := worker.IndexTask{
		Folder:        folder,
		Mode:          worker.ModeSync,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if force {
		task.Mode = worker.ModeReindex
	}
	if err := worker.Enqueue(s.pub, task); err != nil {
		return task, err
	}
	slog.InfoContext(ctx, "queued index task", "folder", folder, "mode", task.Mode)
	return task, nil
}

// Delete drops a document's chunks, then its manifest row. Retrieval hides
// chunks of documents missing from the manifest, so a failure between the
// two steps never surfaces partial data.
func (s *Service) Delete(ctx context.Context, docID string) error {
	if _, err := s.Get(ctx, docID); err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocID(ctx, docID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, docID); err != nil {
		return apperr.Storage("document.Delete", err)
	}
	return nil
}
