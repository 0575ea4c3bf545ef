package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	jsonutil "github.com/kart-io/knowledge-x/pkg/utils/json"
)

// EmbeddingCacheConfig 向量缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存
	Enabled bool
	// TTL 缓存过期时间
	TTL time.Duration
	// KeyPrefix 缓存键前缀
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认配置。
// 同一文本的向量在模型不变时稳定，TTL 可以放得比较长。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "emb:",
	}
}

// CachedEmbeddingProvider 用 Redis 缓存向量结果的包装器。
// 重复摄入同一批文档或重复提问时省掉向量化调用。
// 缓存读写失败只记日志，不影响向量化结果。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    *goredis.Client
	config   *EmbeddingCacheConfig
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

// NewCachedEmbeddingProvider 创建带缓存的 Embedding 供应商。
// config 为 nil 时取默认配置。
func NewCachedEmbeddingProvider(
	provider EmbeddingProvider,
	redis *goredis.Client,
	config *EmbeddingCacheConfig,
) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

// Name 返回底层供应商名称加 -cached 后缀。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// EmbedSingle 生成单个文本的向量，优先走缓存。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if !c.enabled() {
		return c.provider.EmbedSingle(ctx, text)
	}

	key := c.cacheKey(text)
	if embedding, ok := c.cacheGet(ctx, key); ok {
		return embedding, nil
	}

	embedding, err := c.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cachePut(ctx, key, embedding)
	return embedding, nil
}

// Embed 批量生成向量。命中的条目直接取缓存，
// 其余合并成一次底层调用后回填。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.enabled() {
		return c.provider.Embed(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var missIndices []int
	var missTexts []string

	for i, text := range texts {
		if embedding, ok := c.cacheGet(ctx, c.cacheKey(text)); ok {
			embeddings[i] = embedding
			continue
		}
		missIndices = append(missIndices, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings served from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Debugw("embedding cache partial miss", "total", len(texts), "misses", len(missTexts))
	computed, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, idx := range missIndices {
		embeddings[idx] = computed[i]
		c.cachePut(ctx, c.cacheKey(missTexts[i]), computed[i])
	}
	return embeddings, nil
}

func (c *CachedEmbeddingProvider) enabled() bool {
	return c.config.Enabled && c.redis != nil
}

// cacheKey 键为文本的 SHA256，避免长文本直接入键。
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

func (c *CachedEmbeddingProvider) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("embedding cache get failed", "error", err.Error(), "key", key)
		}
		return nil, false
	}

	var embedding []float32
	if err := jsonutil.Unmarshal(data, &embedding); err != nil {
		// 损坏的条目删掉，下次重算
		logger.Warnw("corrupt cached embedding, deleting", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return embedding, true
}

func (c *CachedEmbeddingProvider) cachePut(ctx context.Context, key string, embedding []float32) {
	data, err := jsonutil.Marshal(embedding)
	if err != nil {
		logger.Warnw("failed to marshal embedding for cache", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to cache embedding", "error", err.Error(), "key", key)
	}
}
