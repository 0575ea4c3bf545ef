package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/knowledge-x/internal/model"
	jsonutil "github.com/kart-io/knowledge-x/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 查询结果缓存。缓存键由归一化后的问题与过滤条件
// 指纹共同决定，同一问题不同过滤条件互不命中。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "kb:query:",
		}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "kb:query:"
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey 基于归一化问题与过滤条件指纹生成缓存键。
func (c *QueryCache) cacheKey(req *model.QueryRequest) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(req.Question), " "))

	fingerprint, err := jsonutil.Marshal(&model.QueryRequest{
		TopK:             req.TopK,
		Collection:       req.Collection,
		Department:       req.Department,
		ContentType:      req.ContentType,
		OrganizationType: req.OrganizationType,
		UploadedBy:       req.UploadedBy,
		SecurityCeiling:  req.SecurityCeiling,
		Tags:             req.Tags,
		WithAnswer:       req.WithAnswer,
	})
	if err != nil {
		fingerprint = nil
	}

	hash := sha256.Sum256(append([]byte(normalized+"|"), fingerprint...))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 从缓存获取查询结果，未命中或缓存未启用时返回 nil。
func (c *QueryCache) Get(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	if !c.config.Enabled || c.redis == nil {
		return nil, nil
	}

	key := c.cacheKey(req)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			logger.Debugw("query cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var resp model.QueryResponse
	if err := jsonutil.Unmarshal(data, &resp); err != nil {
		logger.Warnw("failed to unmarshal cached response", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Debugw("query cache hit", "key", key, "hits", resp.Count)
	return &resp, nil
}

// Set 将查询结果写入缓存，失败仅记录日志。
func (c *QueryCache) Set(ctx context.Context, req *model.QueryRequest, resp *model.QueryResponse) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	data, err := jsonutil.Marshal(resp)
	if err != nil {
		logger.Warnw("failed to marshal response for caching", "error", err.Error())
		return err
	}

	key := c.cacheKey(req)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 清除全部查询缓存。
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
		} else {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error())
		return err
	}

	logger.Infow("cleared query cache", "deleted_count", deleted)
	return nil
}

// Stats 返回缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) (map[string]any, error) {
	if !c.config.Enabled || c.redis == nil {
		return map[string]any{"enabled": false}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
