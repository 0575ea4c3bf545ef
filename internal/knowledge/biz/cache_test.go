package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/model"
)

func TestQueryCacheDisabled(t *testing.T) {
	c := NewQueryCache(nil, nil)
	ctx := context.Background()
	req := &model.QueryRequest{Question: "q"}

	got, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, c.Set(ctx, req, &model.QueryResponse{}))
	assert.NoError(t, c.Clear(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, stats["enabled"])
}

func TestQueryCacheKey(t *testing.T) {
	c := NewQueryCache(nil, &QueryCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "kb:query:"})

	base := &model.QueryRequest{Question: "What is the discharge protocol?", Department: "cardiology"}

	t.Run("问题归一化后键稳定", func(t *testing.T) {
		variant := &model.QueryRequest{Question: "  what IS the   discharge protocol? ", Department: "cardiology"}
		assert.Equal(t, c.cacheKey(base), c.cacheKey(variant))
	})

	t.Run("过滤条件不同键不同", func(t *testing.T) {
		other := &model.QueryRequest{Question: base.Question, Department: "oncology"}
		assert.NotEqual(t, c.cacheKey(base), c.cacheKey(other))
	})

	t.Run("问题不同键不同", func(t *testing.T) {
		other := &model.QueryRequest{Question: "another question", Department: "cardiology"}
		assert.NotEqual(t, c.cacheKey(base), c.cacheKey(other))
	})

	t.Run("键带前缀", func(t *testing.T) {
		assert.Contains(t, c.cacheKey(base), "kb:query:")
	})
}
