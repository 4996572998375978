package weaviate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/internal/adapter/weaviate"
	"marketlens/internal/apperr"
	"marketlens/internal/research"
	"marketlens/internal/testutils"
	"marketlens/internal/vector"
)

func TestWeaviateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	store := weaviate.NewStore(s.Weaviate, "")
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx, "test-model", 3))

	// Empty collection
	matches, err := store.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	records := []vector.Record{
		{ID: "11111111-1111-5111-8111-111111111111", Chunk: research.DocumentChunk{DocID: "a", Source: "a.pdf", Page: 1, Text: "battery supply"}, Vector: []float32{1, 0, 0}},
		{ID: "22222222-2222-5222-8222-222222222222", Chunk: research.DocumentChunk{DocID: "b", Source: "b.pdf", Page: 1, Text: "charging network"}, Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, store.Insert(ctx, records))

	// Re-inserting the same IDs keeps the count stable
	require.NoError(t, store.Insert(ctx, records))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	matches, err = store.Query(ctx, []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "battery supply", matches[0].Chunk.Text)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)

	require.NoError(t, store.DeleteByDocID(ctx, "a"))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Reopening with another dimension is rejected
	err = store.EnsureSchema(ctx, "test-model", 4)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}
