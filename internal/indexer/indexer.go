package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"marketlens/internal/apperr"
	"marketlens/internal/research"
	"marketlens/internal/retry"
	"marketlens/internal/text"
	"marketlens/internal/vector"
)

type Extractor interface {
	ExtractPages(path string) ([]string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	Insert(ctx context.Context, records []vector.Record) error
	Count(ctx context.Context) (int, error)
	DeleteByDocID(ctx context.Context, docID string) error
}

// Manifest records which documents are fully persisted.
type Manifest interface {
	IsCommitted(ctx context.Context, docID string) (bool, error)
	Commit(ctx context.Context, e Entry) error
	// Superseded lists committed doc IDs for source other than docID.
	Superseded(ctx context.Context, source, docID string) ([]string, error)
	Delete(ctx context.Context, docID string) error
}

type runMode int

const (
	modeSync runMode = iota
	modeReindex
	modeIfEmpty
)

// Entry describes one indexed document.
type Entry struct {
	DocID    string
	Source   string
	Path     string
	Checksum string
	Pages    int
	Chunks   int
}

type Summary struct {
	Documents int `json:"documents"`
	Skipped   int `json:"skipped"`
	Chunks    int `json:"chunks"`
}

// Indexer turns a folder of documents into page chunks in the vector
// store. Runs are serialized.
type Indexer struct {
	extractor Extractor
	embedder  Embedder
	store     Store
	manifest  Manifest
	policy    retry.Policy

	mu sync.Mutex
}

func New(extractor Extractor, embedder Embedder, store Store, manifest Manifest, policy retry.Policy) *Indexer {
	return &Indexer{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		manifest:  manifest,
		policy:    policy,
	}
}

// IsIndexed reports whether the store holds any chunk.
func (ix *Indexer) IsIndexed(ctx context.Context) (bool, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SyncIfEmpty indexes folder only when the store is empty. The manifest is
// ignored in that case since it cannot describe an empty store.
func (ix *Indexer) SyncIfEmpty(ctx context.Context, folder string) (Summary, error) {
	return ix.run(ctx, folder, modeIfEmpty)
}

// Sync indexes documents in folder that the manifest does not list yet.
func (ix *Indexer) Sync(ctx context.Context, folder string) (Summary, error) {
	return ix.run(ctx, folder, modeSync)
}

// Reindex re-embeds every document in folder. Chunk IDs are stable, so
// existing records are overwritten rather than duplicated.
func (ix *Indexer) Reindex(ctx context.Context, folder string) (Summary, error) {
	return ix.run(ctx, folder, modeReindex)
}

func (ix *Indexer) run(ctx context.Context, folder string, mode runMode) (Summary, error) {
	const op = "indexer.Sync"

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Checked under the lock so concurrent startup tasks index once.
	if mode == modeIfEmpty {
		indexed, err := ix.IsIndexed(ctx)
		if err != nil {
			return Summary{}, err
		}
		if indexed {
			slog.InfoContext(ctx, "store already populated, skipping index", "folder", folder)
			return Summary{}, nil
		}
	}
	force := mode != modeSync

	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, apperr.NotFound(op, fmt.Sprintf("folder %s does not exist", folder))
		}
		return Summary{}, apperr.E(apperr.KindUnknown, op, err)
	}
	if !info.IsDir() {
		return Summary{}, apperr.NotFound(op, fmt.Sprintf("%s is not a directory", folder))
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return Summary{}, apperr.E(apperr.KindUnknown, op, err)
	}

	start := time.Now()
	var sum Summary
	for _, e := range entries {
		if e.IsDir() || !text.IsDocument(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		chunks, indexed, err := ix.indexFile(ctx, filepath.Join(folder, e.Name()), e.Name(), force)
		if err != nil {
			slog.ErrorContext(ctx, "index sync aborted", "source", e.Name(), "error", err)
			return sum, err
		}
		if !indexed {
			sum.Skipped++
			continue
		}
		sum.Documents++
		sum.Chunks += chunks
	}

	slog.InfoContext(ctx, "index sync completed",
		"folder", folder,
		"documents", sum.Documents,
		"skipped", sum.Skipped,
		"chunks", sum.Chunks,
		"duration", time.Since(start))
	return sum, nil
}

// indexFile persists one document. It returns false when the document was
// skipped because it is already committed or cannot be read.
func (ix *Indexer) indexFile(ctx context.Context, path, name string, force bool) (int, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.WarnContext(ctx, "skipping unreadable document", "source", name, "error", err)
		return 0, false, nil
	}

	docID := DocumentID(name, content)

	if !force {
		committed, err := ix.manifest.IsCommitted(ctx, docID)
		if err != nil {
			return 0, false, err
		}
		if committed {
			slog.DebugContext(ctx, "document already indexed", "doc_id", docID, "source", name)
			return 0, false, nil
		}
	}

	pages, err := ix.extractor.ExtractPages(path)
	if err != nil {
		slog.WarnContext(ctx, "skipping document without extractable text", "source", name, "error", err)
		return 0, false, nil
	}

	records := make([]vector.Record, 0, len(pages))
	for page, body := range pages {
		if text.IsBlank(body) {
			continue
		}
		vec, err := retry.Do(ctx, ix.policy, "indexer.Embed", func(ctx context.Context) ([]float32, error) {
			return ix.embedder.Embed(ctx, body)
		})
		if err != nil {
			return 0, false, fmt.Errorf("embed %s page %d: %w", name, page, err)
		}
		records = append(records, vector.Record{
			ID:     ChunkID(docID, page),
			Chunk:  research.DocumentChunk{DocID: docID, Source: name, Page: page, Text: body},
			Vector: vec,
		})
	}

	if err := retry.Run(ctx, ix.policy, "indexer.Insert", func(ctx context.Context) error {
		return ix.store.Insert(ctx, records)
	}); err != nil {
		return 0, false, fmt.Errorf("insert %s: %w", name, err)
	}

	entry := Entry{
		DocID:    docID,
		Source:   name,
		Path:     path,
		Checksum: Checksum(content),
		Pages:    len(pages),
		Chunks:   len(records),
	}
	if err := ix.manifest.Commit(ctx, entry); err != nil {
		return 0, false, fmt.Errorf("commit %s: %w", name, err)
	}

	slog.InfoContext(ctx, "document indexed", "doc_id", docID, "source", name, "pages", len(pages), "chunks", len(records))
	ix.pruneSuperseded(ctx, name, docID)
	return len(records), true, nil
}

// pruneSuperseded removes earlier versions of source once docID is
// committed. Failures leave the old rows in place for the next sync.
func (ix *Indexer) pruneSuperseded(ctx context.Context, source, docID string) {
	old, err := ix.manifest.Superseded(ctx, source, docID)
	if err != nil {
		slog.WarnContext(ctx, "failed to look up superseded versions", "source", source, "error", err)
		return
	}
	for _, id := range old {
		if err := ix.store.DeleteByDocID(ctx, id); err != nil {
			slog.WarnContext(ctx, "failed to delete superseded chunks", "doc_id", id, "source", source, "error", err)
			continue
		}
		if err := ix.manifest.Delete(ctx, id); err != nil {
			slog.WarnContext(ctx, "failed to delete superseded manifest row", "doc_id", id, "source", source, "error", err)
			continue
		}
		slog.InfoContext(ctx, "superseded version removed", "doc_id", id, "source", source)
	}
}
