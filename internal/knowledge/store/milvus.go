package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/pkg/component/milvus"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// milvus 标量列，与过滤字段白名单一致。完整记录以 JSON 存入 metadata 列。
var milvusMetaFields = []milvus.MetaField{
	{Name: "metadata", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
	{Name: "department", DataType: entity.FieldTypeVarChar, MaxLen: 255},
	{Name: "role", DataType: entity.FieldTypeVarChar, MaxLen: 255},
	{Name: "organization_type", DataType: entity.FieldTypeVarChar, MaxLen: 64},
	{Name: "uploaded_by", DataType: entity.FieldTypeVarChar, MaxLen: 255},
	{Name: "content_type", DataType: entity.FieldTypeVarChar, MaxLen: 64},
	{Name: "category", DataType: entity.FieldTypeVarChar, MaxLen: 255},
	{Name: "language", DataType: entity.FieldTypeVarChar, MaxLen: 32},
	{Name: "security_level", DataType: entity.FieldTypeVarChar, MaxLen: 32},
	{Name: "anonymized", DataType: entity.FieldTypeBool},
	{Name: "source_file_id", DataType: entity.FieldTypeVarChar, MaxLen: 128},
	{Name: "chunk_index", DataType: entity.FieldTypeInt64},
	{Name: "content_hash", DataType: entity.FieldTypeVarChar, MaxLen: 64},
	{Name: "tags", DataType: entity.FieldTypeArray, ElementType: entity.FieldTypeVarChar, MaxLen: 255, MaxCapacity: 64},
}

var milvusOutputFields = []string{"metadata"}

const (
	milvusMaxAttempts  = 3
	milvusRetryBackoff = 500 * time.Millisecond
)

// MilvusStore 实现基于 Milvus 的向量存储。所有远程调用做有限次重试，
// 重试耗尽后返回 ErrKBStoreUnavailable。
type MilvusStore struct {
	client *milvus.Client

	mu   sync.RWMutex
	dims map[string]int
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{
		client: client,
		dims:   make(map[string]int),
	}
}

// transientRPCError 判定远程调用错误是否可重试。仅连接层瞬态故障
// 可重试；已分类的结构化错误和服务端确定性拒绝（非法表达式、
// schema 冲突等）重试不会改变结果，必须原样上抛。
func transientRPCError(err error) bool {
	var errno *apierrors.Errno
	if errors.As(err, &errno) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
			return true
		default:
			return false
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	// 无法归类的错误按瞬态处理，保留重试机会
	return true
}

// classifyRPCError 将服务端确定性拒绝映射为结构化错误。
func classifyRPCError(op string, err error) error {
	var errno *apierrors.Errno
	if errors.As(err, &errno) {
		return err
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.InvalidArgument:
			return apierrors.ErrKBInvalidFilter.WithCause(fmt.Errorf("%s rejected: %w", op, err))
		case codes.NotFound:
			return apierrors.ErrKBCollectionNotFound.WithCause(fmt.Errorf("%s rejected: %w", op, err))
		}
	}
	return fmt.Errorf("%s rejected by server: %w", op, err)
}

// withRetry 有限次重试远程调用，上下文取消立即停止。
// 只重试瞬态连接错误，确定性错误第一次就上抛。
func withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= milvusMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !transientRPCError(lastErr) {
			return classifyRPCError(op, lastErr)
		}
		if attempt < milvusMaxAttempts {
			logger.Warnw("milvus operation failed, retrying",
				"op", op, "attempt", attempt, "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * milvusRetryBackoff):
			}
		}
	}
	return apierrors.ErrKBStoreUnavailable.WithCause(
		fmt.Errorf("%s failed after %d attempts: %w", op, milvusMaxAttempts, lastErr))
}

// dimension 返回集合维度，优先走本地缓存。
func (s *MilvusStore) dimension(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	dim, ok := s.dims[collection]
	s.mu.RUnlock()
	if ok {
		return dim, nil
	}

	err := withRetry(ctx, "describe collection", func() error {
		var derr error
		dim, derr = s.client.VectorDimension(ctx, collection)
		return derr
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.dims[collection] = dim
	s.mu.Unlock()
	return dim, nil
}

// CreateCollection 创建 Milvus 集合。已存在且维度一致为空操作，
// 维度不一致返回 ErrKBSchemaConflict。
func (s *MilvusStore) CreateCollection(ctx context.Context, desc *CollectionDescriptor) error {
	var exists bool
	err := withRetry(ctx, "has collection", func() error {
		var herr error
		exists, herr = s.client.HasCollection(ctx, desc.Name)
		return herr
	})
	if err != nil {
		return err
	}

	if exists {
		dim, err := s.dimension(ctx, desc.Name)
		if err != nil {
			return err
		}
		if dim != desc.Dimension {
			return apierrors.ErrKBSchemaConflict.WithMessagef(
				"collection %s exists with dimension %d, requested %d",
				desc.Name, dim, desc.Dimension)
		}
		return nil
	}

	schema := &milvus.CollectionSchema{
		Name:        desc.Name,
		Description: desc.Description,
		Dimension:   desc.Dimension,
		MetaFields:  milvusMetaFields,
	}
	err = withRetry(ctx, "create collection", func() error {
		return s.client.CreateCollection(ctx, schema)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.dims[desc.Name] = desc.Dimension
	s.mu.Unlock()
	return nil
}

// tagsOrEmpty 保证数组列永不为 nil。
func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// chunkFilter 渲染分块身份过滤表达式。
func chunkFilter(sourceFileID string, chunkIndex int) (string, error) {
	expr := &And{Exprs: []FilterExpr{
		&Eq{Field: "source_file_id", Value: sourceFileID},
		&Eq{Field: "chunk_index", Value: int64(chunkIndex)},
	}}
	return expr.Render()
}

// Insert 插入一条文档记录，返回生成的 ULID 记录 ID。
//
// 去重检查（HasChunk）与写入之间没有服务端事务，并发摄入同一分块
// 存在竞态窗口：两个写入方可能都通过检查并各自落库一条内容相同的
// 记录。内存实现于单把锁内完成检查与写入，不存在该窗口；Milvus 路
// 的 ErrKBDuplicateChunk 因此只是尽力而为的保护。
func (s *MilvusStore) Insert(ctx context.Context, collection string, vector []float32, rec *model.DocumentRecord) (string, error) {
	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return "", err
	}
	if len(vector) != dim {
		return "", apierrors.ErrKBDimensionMismatch.WithMessagef(
			"vector has dimension %d, collection %s requires %d",
			len(vector), collection, dim)
	}

	exists, err := s.HasChunk(ctx, collection, rec.Processing.SourceFileID, rec.Processing.ChunkIndex)
	if err != nil {
		return "", err
	}
	if exists {
		return "", apierrors.ErrKBDuplicateChunk.WithMessagef("chunk %s already stored",
			chunkKey(rec.Processing.SourceFileID, rec.Processing.ChunkIndex))
	}

	cp := *rec
	cp.ID = ulid.Make().String()
	blob, err := sonic.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record %s: %w", cp.ID, err)
	}

	data := &milvus.InsertData{
		IDs:        []string{cp.ID},
		Embeddings: [][]float32{vector},
		Metadata: map[string][]any{
			"metadata":          {string(blob)},
			"department":        {rec.Organizational.Department},
			"role":              {rec.Organizational.Role},
			"organization_type": {string(rec.Organizational.OrganizationType)},
			"uploaded_by":       {rec.Organizational.UploadedBy},
			"content_type":      {string(rec.Content.ContentType)},
			"category":          {rec.Content.Category},
			"language":          {rec.Content.Language},
			"security_level":    {string(rec.Compliance.SecurityLevel)},
			"anonymized":        {rec.Compliance.Anonymized},
			"source_file_id":    {rec.Processing.SourceFileID},
			"chunk_index":       {int64(rec.Processing.ChunkIndex)},
			"content_hash":      {rec.Processing.ContentHash},
			"tags":              {tagsOrEmpty(rec.Content.Tags)},
		},
	}

	err = withRetry(ctx, "insert", func() error {
		return s.client.Insert(ctx, collection, data)
	})
	if err != nil {
		return "", err
	}
	return cp.ID, nil
}

// HasChunk 检查分块是否已存在。
func (s *MilvusStore) HasChunk(ctx context.Context, collection, sourceFileID string, chunkIndex int) (bool, error) {
	expr, err := chunkFilter(sourceFileID, chunkIndex)
	if err != nil {
		return false, err
	}

	var results []milvus.SearchResult
	err = withRetry(ctx, "query chunk", func() error {
		var qerr error
		results, qerr = s.client.Query(ctx, collection, expr, 1, []string{"source_file_id"})
		return qerr
	})
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}

// VectorSearch 向量相似度检索。
func (s *MilvusStore) VectorSearch(ctx context.Context, collection string, vector []float32, topK int, filter FilterExpr) ([]*ScoredRecord, error) {
	return s.HybridSearch(ctx, collection, vector, topK, filter)
}

// HybridSearch 先按过滤表达式收窄候选集，再按相似度排序。
func (s *MilvusStore) HybridSearch(ctx context.Context, collection string, vector []float32, topK int, filter FilterExpr) ([]*ScoredRecord, error) {
	if topK <= 0 {
		return nil, apierrors.ErrKBInvalidRequest.WithMessage("topK must be positive")
	}

	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, apierrors.ErrKBDimensionMismatch.WithMessagef(
			"query vector has dimension %d, collection %s requires %d",
			len(vector), collection, dim)
	}

	expr := ""
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
		if expr, err = filter.Render(); err != nil {
			return nil, err
		}
	}

	var results []milvus.SearchResult
	err = withRetry(ctx, "search", func() error {
		var serr error
		results, serr = s.client.Search(ctx, collection, vector, topK, expr, milvusOutputFields)
		return serr
	})
	if err != nil {
		return nil, err
	}

	return decodeResults(results, true)
}

// MetadataSearch 纯元数据过滤查询。Milvus 的 query 不支持服务端排序，
// sortBy 非空时在本地对返回页排序，排序范围限于 limit 截取到的页内。
func (s *MilvusStore) MetadataSearch(ctx context.Context, collection string, filter FilterExpr, limit int, sortBy string) ([]*ScoredRecord, error) {
	if filter == nil {
		return nil, apierrors.ErrKBInvalidFilter.WithMessage("metadata search requires a filter")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if sortBy != "" {
		if err := validateSortField(sortBy); err != nil {
			return nil, err
		}
	}
	expr, err := filter.Render()
	if err != nil {
		return nil, err
	}

	var results []milvus.SearchResult
	err = withRetry(ctx, "query", func() error {
		var qerr error
		results, qerr = s.client.Query(ctx, collection, expr, limit, milvusOutputFields)
		return qerr
	})
	if err != nil {
		return nil, err
	}

	out, err := decodeResults(results, false)
	if err != nil {
		return nil, err
	}
	if sortBy != "" {
		sortRecords(out, sortBy)
	}
	return out, nil
}

// decodeResults 将 Milvus 结果中的 metadata JSON 还原为文档记录。
func decodeResults(results []milvus.SearchResult, scored bool) ([]*ScoredRecord, error) {
	out := make([]*ScoredRecord, 0, len(results))
	for _, r := range results {
		blob, ok := r.Metadata["metadata"].(string)
		if !ok {
			continue
		}
		var rec model.DocumentRecord
		if err := sonic.UnmarshalString(blob, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", r.ID, err)
		}
		sr := &ScoredRecord{
			Record: &rec,
			Source: "vector",
		}
		if scored {
			sr.Score = float64(r.Score)
		}
		out = append(out, sr)
	}
	return out, nil
}

// Stats 返回集合统计信息。
func (s *MilvusStore) Stats(ctx context.Context, collection string) (*CollectionStats, error) {
	var count int64
	err := withRetry(ctx, "collection stats", func() error {
		var serr error
		count, serr = s.client.GetCollectionStats(ctx, collection)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return &CollectionStats{
		Name:     collection,
		RowCount: count,
	}, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
