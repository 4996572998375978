package retrieval

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"marketlens/internal/research"
	"marketlens/internal/vector"
)

func TestQueryLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	concurrency := 50
	iterations := 100
	var wg sync.WaitGroup

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Log(QueryLogEntry{
					Query:    "test",
					Duration: time.Millisecond,
				})
			}
		}()
	}
	wg.Wait()

	// Verify output is valid JSON stream
	decoder := json.NewDecoder(&buf)
	count := 0
	for decoder.More() {
		var entry QueryLogEntry
		err := decoder.Decode(&entry)
		if err != nil {
			t.Fatalf("Failed to decode entry %d: %v", count, err)
		}
		count++
	}

	expected := concurrency * iterations
	if count != expected {
		t.Errorf("Expected %d entries, got %d", expected, count)
	}
}

func TestFileQueryLogger_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "query.log")

	logger := NewFileQueryLogger(path)
	logger.Log(QueryLogEntry{Query: "first", NumResults: 1})
	logger.Log(QueryLogEntry{Query: "second", NumResults: 2, Duration: 3 * time.Millisecond})
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var entry QueryLogEntry
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Query != "second" || entry.LatencyMs != 3 {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestQueryLogEntry_Summarize(t *testing.T) {
	matches := []vector.Match{
		{Chunk: research.DocumentChunk{DocID: "a", Source: "a.pdf"}, Distance: 0.12},
		{Chunk: research.DocumentChunk{DocID: "b", Source: "b.pdf"}, Distance: 0.3},
		{Chunk: research.DocumentChunk{DocID: "a", Source: "a.pdf", Page: 2}, Distance: 0.4},
	}
	chunks := []research.DocumentChunk{matches[0].Chunk, matches[2].Chunk}

	var e QueryLogEntry
	e.summarize(matches, chunks)

	if e.Candidates != 3 || e.NumResults != 2 {
		t.Errorf("unexpected counts %+v", e)
	}
	if len(e.Sources) != 1 || e.Sources[0] != "a.pdf" {
		t.Errorf("unexpected sources %v", e.Sources)
	}
	if e.BestDistance == nil || *e.BestDistance != 0.12 {
		t.Errorf("unexpected best distance %v", e.BestDistance)
	}
}

func TestQueryLogger_TruncatesQuery(t *testing.T) {
	var buf bytes.Buffer
	NewQueryLogger(&buf).Log(QueryLogEntry{Query: strings.Repeat("q", maxLoggedQuery+100)})

	var entry QueryLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := len([]rune(entry.Query)); got > maxLoggedQuery {
		t.Errorf("query not truncated: %d runes", got)
	}
}

func TestQueryLogger_CloseLeavesCallerWriter(t *testing.T) {
	if err := NewQueryLogger(os.Stdout).Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
