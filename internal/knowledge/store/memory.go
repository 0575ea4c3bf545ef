package store

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/textutil"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// memEntry 内存集合中的一条记录，保留插入顺序。
type memEntry struct {
	record *model.DocumentRecord
	vector []float32
	seq    int
}

// memCollection 内存集合。
type memCollection struct {
	desc    CollectionDescriptor
	entries []*memEntry
	byChunk map[string]*memEntry
	nextSeq int
}

// MemoryStore 是 VectorStore 的内存实现，检索结果完全确定：
// 相似度相同的结果按 chunk_index 升序，再按插入顺序排列。
// 用于测试以及 Milvus 不可用时的单机回退。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存向量存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
	}
}

// CreateCollection 创建集合。重复创建同维度集合为空操作。
func (s *MemoryStore) CreateCollection(_ context.Context, desc *CollectionDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[desc.Name]; ok {
		if existing.desc.Dimension != desc.Dimension {
			return apierrors.ErrKBSchemaConflict.WithMessagef(
				"collection %s exists with dimension %d, requested %d",
				desc.Name, existing.desc.Dimension, desc.Dimension)
		}
		return nil
	}

	s.collections[desc.Name] = &memCollection{
		desc:    *desc,
		byChunk: make(map[string]*memEntry),
	}
	return nil
}

func (s *MemoryStore) collection(name string) (*memCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, apierrors.ErrKBCollectionNotFound.WithMessagef("collection %s not found", name)
	}
	return c, nil
}

// Insert 插入一条文档记录，返回生成的 ULID 记录 ID。
func (s *MemoryStore) Insert(_ context.Context, collection string, vector []float32, rec *model.DocumentRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return "", err
	}

	if len(vector) != c.desc.Dimension {
		return "", apierrors.ErrKBDimensionMismatch.WithMessagef(
			"vector has dimension %d, collection %s requires %d",
			len(vector), collection, c.desc.Dimension)
	}

	key := chunkKey(rec.Processing.SourceFileID, rec.Processing.ChunkIndex)
	if _, exists := c.byChunk[key]; exists {
		return "", apierrors.ErrKBDuplicateChunk.WithMessagef("chunk %s already stored", key)
	}

	cp := *rec
	cp.ID = ulid.Make().String()
	entry := &memEntry{
		record: &cp,
		vector: vector,
		seq:    c.nextSeq,
	}
	c.nextSeq++
	c.entries = append(c.entries, entry)
	c.byChunk[key] = entry
	return cp.ID, nil
}

// HasChunk 检查分块是否已存在。
func (s *MemoryStore) HasChunk(_ context.Context, collection, sourceFileID string, chunkIndex int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	_, ok := c.byChunk[chunkKey(sourceFileID, chunkIndex)]
	return ok, nil
}

// VectorSearch 余弦相似度检索。
func (s *MemoryStore) VectorSearch(ctx context.Context, collection string, vector []float32, topK int, filter FilterExpr) ([]*ScoredRecord, error) {
	return s.HybridSearch(ctx, collection, vector, topK, filter)
}

// MetadataSearch 按过滤器返回记录。sortBy 为空时保持插入顺序，
// 否则先按字段升序排序再截断到 limit。
func (s *MemoryStore) MetadataSearch(_ context.Context, collection string, filter FilterExpr, limit int, sortBy string) ([]*ScoredRecord, error) {
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}
	if sortBy != "" {
		if err := validateSortField(sortBy); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	var out []*ScoredRecord
	for _, e := range c.entries {
		if filter != nil && !filter.Matches(e.record) {
			continue
		}
		out = append(out, &ScoredRecord{
			Record: e.record,
			Source: "vector",
		})
		if sortBy == "" && limit > 0 && len(out) >= limit {
			break
		}
	}

	if sortBy != "" {
		sortRecords(out, sortBy)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

// HybridSearch 先按过滤器收窄候选集，再按余弦相似度降序排序。
func (s *MemoryStore) HybridSearch(_ context.Context, collection string, vector []float32, topK int, filter FilterExpr) ([]*ScoredRecord, error) {
	if topK <= 0 {
		return nil, apierrors.ErrKBInvalidRequest.WithMessage("topK must be positive")
	}
	if filter != nil {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.desc.Dimension {
		return nil, apierrors.ErrKBDimensionMismatch.WithMessagef(
			"query vector has dimension %d, collection %s requires %d",
			len(vector), collection, c.desc.Dimension)
	}

	type scored struct {
		entry *memEntry
		score float64
	}
	var candidates []scored
	for _, e := range c.entries {
		if filter != nil && !filter.Matches(e.record) {
			continue
		}
		candidates = append(candidates, scored{
			entry: e,
			score: textutil.CosineSimilarity(vector, e.vector),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		ci := candidates[i].entry.record.Processing.ChunkIndex
		cj := candidates[j].entry.record.Processing.ChunkIndex
		if ci != cj {
			return ci < cj
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]*ScoredRecord, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, &ScoredRecord{
			Record: cand.entry.record,
			Score:  cand.score,
			Source: "vector",
		})
	}
	return out, nil
}

// Stats 返回集合统计信息。
func (s *MemoryStore) Stats(_ context.Context, collection string) (*CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return &CollectionStats{
		Name:     collection,
		RowCount: int64(len(c.entries)),
	}, nil
}

// Close 释放资源。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*memCollection)
	return nil
}
