package retrieval

import (
	"context"
	"fmt"
	"time"

	"marketlens/internal/apperr"
	"marketlens/internal/middleware"
	"marketlens/internal/research"
	"marketlens/internal/text"
	"marketlens/internal/vector"
)

// MaxQueryLength bounds the text sent to the embedding model.
const MaxQueryLength = 2000

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Query(ctx context.Context, vec []float32, k int) ([]vector.Match, error)
}

// Manifest reports which documents have finished indexing.
type Manifest interface {
	Committed(ctx context.Context, docIDs []string) (map[string]bool, error)
}

type Options struct {
	Dimension      int
	MaxChunkLength int
}

type Service struct {
	embedder Embedder
	store    VectorStore
	manifest Manifest
	opts     Options
	logger   *QueryLogger
}

// NewService wires the engine. A nil manifest disables the committed
// document filter; a nil logger disables query logging.
func NewService(e Embedder, s VectorStore, m Manifest, opts Options, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, manifest: m, opts: opts, logger: l}
}

// Retrieve returns up to limit chunks most similar to query, nearest first,
// each with text cut to the configured maximum length.
func (s *Service) Retrieve(ctx context.Context, query string, limit int) ([]research.DocumentChunk, error) {
	const op = "retrieval.Retrieve"

	start := time.Now()
	chunks := []research.DocumentChunk{}
	if limit <= 0 {
		return chunks, nil
	}

	vec, err := s.embedder.Embed(ctx, text.Truncate(query, MaxQueryLength))
	if err != nil {
		return nil, err
	}
	if s.opts.Dimension > 0 && len(vec) != s.opts.Dimension {
		return nil, apperr.Configuration(op,
			fmt.Errorf("query embedding has %d dimensions, collection expects %d", len(vec), s.opts.Dimension))
	}

	matches, err := s.store.Query(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	committed, err := s.committed(ctx, matches)
	if err != nil {
		return nil, err
	}

	hidden := 0
	for _, m := range matches {
		if committed != nil && !committed[m.Chunk.DocID] {
			hidden++
			continue
		}
		c := m.Chunk
		if s.opts.MaxChunkLength > 0 {
			c.Text = text.Truncate(c.Text, s.opts.MaxChunkLength)
		}
		chunks = append(chunks, c)
		if len(chunks) == limit {
			break
		}
	}

	if s.logger != nil {
		entry := QueryLogEntry{
			CorrelationID: middleware.GetCorrelationID(ctx),
			Query:         query,
			Limit:         limit,
			Hidden:        hidden,
			Duration:      time.Since(start),
		}
		entry.summarize(matches, chunks)
		s.logger.Log(entry)
	}

	return chunks, nil
}

func (s *Service) committed(ctx context.Context, matches []vector.Match) (map[string]bool, error) {
	if s.manifest == nil || len(matches) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m.Chunk.DocID] {
			seen[m.Chunk.DocID] = true
			ids = append(ids, m.Chunk.DocID)
		}
	}
	committed, err := s.manifest.Committed(ctx, ids)
	if err != nil {
		return nil, apperr.Storage("retrieval.Retrieve", err)
	}
	return committed, nil
}
