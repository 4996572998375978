package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"marketlens/internal/apperr"
)

var errMissingKey = errors.New("gemini api key not configured")

// Embedder maps text to a fixed-length vector with a Gemini embedding model.
// Output that does not match the configured dimension is rejected.
type Embedder struct {
	clients   *clientCache
	model     string
	dimension int
}

func NewEmbedder(keys KeySource, model string, dimension int, opts ...option.ClientOption) *Embedder {
	return &Embedder{
		clients:   &clientCache{keys: keys, clientOpts: opts},
		model:     model,
		dimension: dimension,
	}
}

func (e *Embedder) Model() string  { return e.model }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := e.clients.get(ctx, "gemini.Embed")
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	res, err := client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, apperr.Transient("gemini.Embed", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, apperr.Transient("gemini.Embed", errors.New("empty embedding received"))
	}

	if got := len(res.Embedding.Values); got != e.dimension {
		return nil, apperr.Configuration("gemini.Embed",
			fmt.Errorf("model %s returned %d dimensions, configured %d", e.model, got, e.dimension))
	}

	return res.Embedding.Values, nil
}

func (e *Embedder) Close() error {
	return e.clients.close()
}
