package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/knowledge-x/internal/model"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// FileQuery 关系查询条件，零值字段不参与过滤。
type FileQuery struct {
	Department       string
	ContentType      model.ContentType
	OrganizationType model.OrganizationType
	UploadedBy       string
	Category         string
	State            model.FileState
	// SecurityCeiling 只返回安全级别不高于该上限的文件。
	SecurityCeiling model.SecurityLevel
	// Since 只返回该时间之后创建的文件。
	Since *time.Time
	// Limit 返回条数上限，0 表示不限制。
	Limit int
}

// RelationalConnector 是查询路由使用的关系后端。
type RelationalConnector interface {
	// CountFiles 统计满足条件的文件数量。
	CountFiles(ctx context.Context, q *FileQuery) (int64, error)

	// ListFiles 列出满足条件的文件，按创建时间降序。
	ListFiles(ctx context.Context, q *FileQuery) ([]*model.FileRecord, error)
}

// FileStore 基于 gorm 的文件登记表实现，同时充当查询路由的关系后端。
type FileStore struct {
	db *gorm.DB
}

var _ RelationalConnector = (*FileStore)(nil)

// NewFileStore 创建文件登记存储。
func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

// AutoMigrate 建表。
func (s *FileStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.FileRecord{})
}

// Save 写入或更新文件记录。
func (s *FileStore) Save(ctx context.Context, file *model.FileRecord) error {
	if err := s.db.WithContext(ctx).Save(file).Error; err != nil {
		return apierrors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get 按 ID 查找文件记录。
func (s *FileStore) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	var file model.FileRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrKBFileNotFound.WithMessagef("file %s not found", id)
		}
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	return &file, nil
}

// GetByHash 按内容哈希查找文件记录，用于重复摄入检测。
func (s *FileStore) GetByHash(ctx context.Context, hash string) (*model.FileRecord, error) {
	var file model.FileRecord
	err := s.db.WithContext(ctx).Where("content_hash = ?", hash).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	return &file, nil
}

// UpdateState 更新文件状态和分块数。
func (s *FileStore) UpdateState(ctx context.Context, id string, state model.FileState, chunkCount int) error {
	updates := map[string]any{"state": state}
	if chunkCount > 0 {
		updates["chunk_count"] = chunkCount
	}
	result := s.db.WithContext(ctx).Model(&model.FileRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return apierrors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.ErrKBFileNotFound.WithMessagef("file %s not found", id)
	}
	return nil
}

// Delete 删除文件记录。
func (s *FileStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.FileRecord{})
	if result.Error != nil {
		return apierrors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.ErrKBFileNotFound.WithMessagef("file %s not found", id)
	}
	return nil
}

// applyQuery 按条件拼装查询。
func (s *FileStore) applyQuery(ctx context.Context, q *FileQuery) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&model.FileRecord{})
	if q == nil {
		return db
	}
	if q.Department != "" {
		db = db.Where("department = ?", q.Department)
	}
	if q.ContentType != "" {
		db = db.Where("content_type = ?", q.ContentType)
	}
	if q.OrganizationType != "" {
		db = db.Where("organization_type = ?", q.OrganizationType)
	}
	if q.UploadedBy != "" {
		db = db.Where("uploaded_by = ?", q.UploadedBy)
	}
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if q.State != "" {
		db = db.Where("state = ?", q.State)
	}
	if q.SecurityCeiling != "" {
		db = db.Where("security_level IN ?", model.LevelsAtMost(q.SecurityCeiling))
	}
	if q.Since != nil {
		db = db.Where("created_at >= ?", *q.Since)
	}
	return db
}

// CountFiles 统计满足条件的文件数量。
func (s *FileStore) CountFiles(ctx context.Context, q *FileQuery) (int64, error) {
	var count int64
	if err := s.applyQuery(ctx, q).Count(&count).Error; err != nil {
		return 0, apierrors.ErrDatabase.WithCause(err)
	}
	return count, nil
}

// ListFiles 列出满足条件的文件，按创建时间降序。
func (s *FileStore) ListFiles(ctx context.Context, q *FileQuery) ([]*model.FileRecord, error) {
	db := s.applyQuery(ctx, q).Order("created_at DESC")
	if q != nil && q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var files []*model.FileRecord
	if err := db.Find(&files).Error; err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	return files, nil
}

// CountByState 按状态分组统计，用于服务统计接口。
func (s *FileStore) CountByState(ctx context.Context) (map[model.FileState]int64, error) {
	type row struct {
		State model.FileState
		Count int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&model.FileRecord{}).
		Select("state, count(*) as count").
		Group("state").
		Find(&rows).Error
	if err != nil {
		return nil, apierrors.ErrDatabase.WithCause(err)
	}
	out := make(map[model.FileState]int64, len(rows))
	for _, r := range rows {
		out[r.State] = r.Count
	}
	return out, nil
}
