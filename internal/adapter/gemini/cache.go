package gemini

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

type embedFunc interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// CachedEmbedder memoizes embeddings of repeated texts, mostly queries.
type CachedEmbedder struct {
	inner embedFunc
	cache *cache.Cache
}

func NewCachedEmbedder(inner embedFunc, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedEmbedder) Model() string  { return c.inner.Model() }
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, found := c.cache.Get(text); found {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(text, vec)
	return vec, nil
}
