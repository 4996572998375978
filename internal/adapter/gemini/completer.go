package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"marketlens/internal/apperr"
)

// Completer runs single-turn text generation.
type Completer struct {
	clients *clientCache
	model   string
}

func NewCompleter(keys KeySource, model string, opts ...option.ClientOption) *Completer {
	return &Completer{
		clients: &clientCache{keys: keys, clientOpts: opts},
		model:   model,
	}
}

func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	client, err := c.clients.get(ctx, "gemini.Complete")
	if err != nil {
		return "", err
	}

	m := client.GenerativeModel(c.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", apperr.Transient("gemini.Complete", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}

	if sb.Len() == 0 {
		return "", apperr.Transient("gemini.Complete", errors.New("empty completion"))
	}
	return sb.String(), nil
}

func (c *Completer) Close() error {
	return c.clients.close()
}
