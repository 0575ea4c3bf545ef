package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/kart-io/knowledge-x/internal/model"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// chunkKey 分块身份键。同一文件同一序号的分块在重复摄入时身份相同。
func chunkKey(sourceFileID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", sourceFileID, chunkIndex)
}

// validateSortField 校验排序字段。可排序字段与可过滤标量字段一致，
// tags 为数组字段不参与排序。
func validateSortField(field string) error {
	if field == "tags" {
		return apierrors.ErrKBInvalidFilter.WithMessage("tags is not sortable")
	}
	return validateField(field)
}

// sortRecords 按字段值升序稳定排序。整数字段按数值比较，
// 其余字段按字符串字典序。
func sortRecords(records []*ScoredRecord, field string) {
	sort.SliceStable(records, func(i, j int) bool {
		av := fieldValue(records[i].Record, field)
		bv := fieldValue(records[j].Record, field)
		if ai, ok := toInt64(av); ok {
			bi, _ := toInt64(bv)
			return ai < bi
		}
		return fmt.Sprint(av) < fmt.Sprint(bv)
	})
}

// ScoredRecord 表示一条带分数的检索结果。
type ScoredRecord struct {
	// Record 文档记录。
	Record *model.DocumentRecord
	// Score 相似度分数，元数据检索结果为 0。
	Score float64
	// Source 结果来源（vector 或 relational）。
	Source string
}

// CollectionStats 集合统计信息。
type CollectionStats struct {
	// Name 集合名称。
	Name string `json:"name"`
	// RowCount 集合内分块数量。
	RowCount int64 `json:"row_count"`
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// CreateCollection 创建集合。重复创建同维度集合为空操作；
	// 维度不一致返回 ErrKBSchemaConflict。
	CreateCollection(ctx context.Context, desc *CollectionDescriptor) error

	// Insert 插入一条文档记录及其向量，返回生成的记录 ID。
	// 向量维度与集合不符返回 ErrKBDimensionMismatch；
	// (source_file_id, chunk_index) 已存在返回 ErrKBDuplicateChunk。
	Insert(ctx context.Context, collection string, vector []float32, rec *model.DocumentRecord) (string, error)

	// HasChunk 检查分块是否已存在。
	HasChunk(ctx context.Context, collection, sourceFileID string, chunkIndex int) (bool, error)

	// VectorSearch 向量相似度搜索，按余弦相似度降序返回；同分时
	// chunk_index 小者优先。topK 必须为正。filter 为空表示不过滤。
	VectorSearch(ctx context.Context, collection string, vector []float32, topK int, filter FilterExpr) ([]*ScoredRecord, error)

	// MetadataSearch 纯元数据过滤查询。sortBy 为空时按插入顺序返回，
	// 否则按该字段升序排序；字段不可排序返回 ErrKBInvalidFilter。
	MetadataSearch(ctx context.Context, collection string, filter FilterExpr, limit int, sortBy string) ([]*ScoredRecord, error)

	// HybridSearch 先按过滤器收窄候选集，再按向量相似度排序。
	HybridSearch(ctx context.Context, collection string, vector []float32, topK int, filter FilterExpr) ([]*ScoredRecord, error)

	// Stats 返回集合统计信息。
	Stats(ctx context.Context, collection string) (*CollectionStats, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
