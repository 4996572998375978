package gemini

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"marketlens/internal/apperr"
	"marketlens/internal/settings"
)

// KeySource yields the API key to use for the next call.
type KeySource interface {
	GeminiKey(ctx context.Context) (string, error)
}

// StaticKey is a fixed API key.
type StaticKey string

func (k StaticKey) GeminiKey(ctx context.Context) (string, error) {
	return string(k), nil
}

// SettingsKey reads the key from runtime settings on every call.
type SettingsKey struct {
	Svc *settings.Service
}

func (k SettingsKey) GeminiKey(ctx context.Context) (string, error) {
	s, err := k.Svc.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.GeminiAPIKey, nil
}

// clientCache keeps one genai client and replaces it when the key changes.
type clientCache struct {
	keys       KeySource
	clientOpts []option.ClientOption

	mu         sync.RWMutex
	client     *genai.Client
	currentKey string
}

func (c *clientCache) get(ctx context.Context, op string) (*genai.Client, error) {
	key, err := c.keys.GeminiKey(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apperr.Configuration(op, errMissingKey)
	}

	c.mu.RLock()
	if c.client != nil && c.currentKey == key {
		defer c.mu.RUnlock()
		return c.client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.currentKey == key {
		return c.client, nil
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append(append([]option.ClientOption{}, c.clientOpts...), option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperr.Configuration(op, err)
	}

	c.client = client
	c.currentKey = key
	return client, nil
}

func (c *clientCache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.currentKey = ""
	return err
}
