package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	batch []string
}

func (e *countingEmbedder) Name() string { return "counting" }

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.batch = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func TestCachedEmbeddingProviderPassthrough(t *testing.T) {
	t.Run("无 Redis 时直通底层供应商", func(t *testing.T) {
		inner := &countingEmbedder{}
		c := NewCachedEmbeddingProvider(inner, nil, nil)

		embeddings, err := c.Embed(context.Background(), []string{"a", "bb"})
		require.NoError(t, err)
		require.Len(t, embeddings, 2)
		assert.Equal(t, []float32{2}, embeddings[1])
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("禁用时直通", func(t *testing.T) {
		inner := &countingEmbedder{}
		c := NewCachedEmbeddingProvider(inner, nil, &EmbeddingCacheConfig{Enabled: false})

		_, err := c.EmbedSingle(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, 1, inner.calls)
	})
}

func TestCachedEmbeddingProviderName(t *testing.T) {
	c := NewCachedEmbeddingProvider(&countingEmbedder{}, nil, nil)
	assert.Equal(t, "counting-cached", c.Name())
}

func TestEmbeddingCacheKey(t *testing.T) {
	c := NewCachedEmbeddingProvider(&countingEmbedder{}, nil, &EmbeddingCacheConfig{
		Enabled:   true,
		KeyPrefix: "emb:",
	})

	t.Run("同一文本键稳定", func(t *testing.T) {
		assert.Equal(t, c.cacheKey("discharge protocol"), c.cacheKey("discharge protocol"))
	})

	t.Run("不同文本键不同", func(t *testing.T) {
		assert.NotEqual(t, c.cacheKey("discharge protocol"), c.cacheKey("admission protocol"))
	})

	t.Run("键带前缀且不含原文", func(t *testing.T) {
		key := c.cacheKey("some very long patient document text")
		assert.Contains(t, key, "emb:")
		assert.NotContains(t, key, "patient")
	})
}
