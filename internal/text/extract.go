// Package text turns document files into per-page plain text and bounds
// text length for downstream prompts and reports.
package text

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var documentExts = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// IsDocument reports whether name has an extension the extractor understands.
func IsDocument(name string) bool {
	return documentExts[strings.ToLower(filepath.Ext(name))]
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages returns one entry per page. Pages that cannot be read come back
// as empty strings; only an unreadable file is an error.
func (e *Extractor) ExtractPages(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		b, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from the configured document folder
		if err != nil {
			return nil, err
		}
		return []string{string(b)}, nil
	}
	return nil, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
}

func extractPDF(path string) ([]string, error) {
	f, r, err := pdf.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = pageText(r, i, path)
	}
	return pages, nil
}

func pageText(r *pdf.Reader, num int, path string) (text string) {
	// The pdf package panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("pdf page extraction panicked", "path", path, "page", num-1, "panic", rec)
			text = ""
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		slog.Warn("pdf page extraction failed", "path", path, "page", num-1, "error", err)
		return ""
	}
	return text
}
