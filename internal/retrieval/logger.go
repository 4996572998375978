package retrieval

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"marketlens/internal/research"
	"marketlens/internal/text"
	"marketlens/internal/vector"
)

// maxLoggedQuery bounds the query text written to the log, in runes.
const maxLoggedQuery = 500

// QueryLogEntry is one JSON line in the retrieval query log.
type QueryLogEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	CorrelationID string        `json:"correlation_id"`
	Query         string        `json:"query"`
	Limit         int           `json:"limit"`
	Candidates    int           `json:"candidates"`
	Hidden        int           `json:"hidden"`
	NumResults    int           `json:"num_results"`
	Sources       []string      `json:"sources,omitempty"`
	BestDistance  *float32      `json:"best_distance,omitempty"`
	Duration      time.Duration `json:"-"`
	LatencyMs     int64         `json:"latency_ms"`
}

// summarize fills the result fields from what the store returned and what
// survived filtering.
func (e *QueryLogEntry) summarize(matches []vector.Match, chunks []research.DocumentChunk) {
	e.Candidates = len(matches)
	e.NumResults = len(chunks)
	if len(matches) > 0 {
		d := matches[0].Distance
		e.BestDistance = &d
	}

	seen := make(map[string]bool)
	for _, c := range chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			e.Sources = append(e.Sources, c.Source)
		}
	}
}

// QueryLogger appends JSON lines; safe for concurrent use.
type QueryLogger struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{enc: json.NewEncoder(w)}
}

// NewFileQueryLogger appends entries to path. An empty path or a file that
// cannot be opened falls back to stdout.
func NewFileQueryLogger(path string) *QueryLogger {
	if path == "" {
		return NewQueryLogger(os.Stdout)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		slog.Warn("query log directory unavailable, logging to stdout", "path", path, "error", err)
		return NewQueryLogger(os.Stdout)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from configuration
	if err != nil {
		slog.Warn("query log file unavailable, logging to stdout", "path", path, "error", err)
		return NewQueryLogger(os.Stdout)
	}
	l := NewQueryLogger(f)
	l.c = f
	return l
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	entry.Timestamp = time.Now().UTC()
	entry.LatencyMs = entry.Duration.Milliseconds()
	entry.Query = text.Truncate(entry.Query, maxLoggedQuery)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "error", err)
	}
}

// Close releases the log file. Loggers over caller-owned writers are left open.
func (l *QueryLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c == nil {
		return nil
	}
	err := l.c.Close()
	l.c = nil
	return err
}
