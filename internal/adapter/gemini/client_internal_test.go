package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type switchingKey struct{ key string }

func (s *switchingKey) GeminiKey(ctx context.Context) (string, error) { return s.key, nil }

func TestClientCache_SwitchesOnKeyChange(t *testing.T) {
	keys := &switchingKey{key: "key1"}
	cache := &clientCache{keys: keys}
	ctx := context.Background()

	client1, err := cache.get(ctx, "test")
	assert.NoError(t, err)
	assert.NotNil(t, client1)
	assert.Equal(t, "key1", cache.currentKey)

	client2, err := cache.get(ctx, "test")
	assert.NoError(t, err)
	assert.Same(t, client1, client2)

	keys.key = "key2"
	client3, err := cache.get(ctx, "test")
	assert.NoError(t, err)
	assert.NotSame(t, client1, client3)
	assert.Equal(t, "key2", cache.currentKey)

	assert.NoError(t, cache.close())
	assert.Nil(t, cache.client)
}
