package model

import "time"

// FileState 文件入库状态机。
// UPLOADED -> EXTRACTED -> CHUNKED -> EMBEDDING -> STORED | PARTIALLY_STORED | FAILED
type FileState string

const (
	StateUploaded        FileState = "UPLOADED"
	StateExtracted       FileState = "EXTRACTED"
	StateChunked         FileState = "CHUNKED"
	StateEmbedding       FileState = "EMBEDDING"
	StateStored          FileState = "STORED"
	StatePartiallyStored FileState = "PARTIALLY_STORED"
	StateFailed          FileState = "FAILED"
)

// Terminal reports whether the state is final.
func (s FileState) Terminal() bool {
	switch s {
	case StateStored, StatePartiallyStored, StateFailed:
		return true
	}
	return false
}

// FileRecord 文件级平铺元数据，入库前由调用方提供，
// 入库后在关系库中登记处理状态。
type FileRecord struct {
	ID                   string            `json:"id" gorm:"primaryKey;type:varchar(64)"`
	FileName             string            `json:"file_name" gorm:"type:varchar(255);not null"`
	FilePath             string            `json:"file_path,omitempty" gorm:"type:varchar(512)"`
	Title                string            `json:"title,omitempty" gorm:"type:varchar(255)"`
	Author               string            `json:"author,omitempty" gorm:"type:varchar(128)"`
	ContentType          ContentType       `json:"content_type" gorm:"type:varchar(32);index"`
	Format               string            `json:"format,omitempty" gorm:"type:varchar(32)"`
	Category             string            `json:"category,omitempty" gorm:"type:varchar(64)"`
	Department           string            `json:"department" gorm:"type:varchar(128);index"`
	Role                 string            `json:"role,omitempty" gorm:"type:varchar(64)"`
	OrganizationType     OrganizationType  `json:"organization_type" gorm:"type:varchar(32);index"`
	UploadedBy           string            `json:"uploaded_by,omitempty" gorm:"type:varchar(128);index"`
	AccessGroups         []string          `json:"access_groups,omitempty" gorm:"serializer:json"`
	SecurityLevel        SecurityLevel     `json:"security_level" gorm:"type:varchar(32);index"`
	ApprovedBy           string            `json:"approved_by,omitempty" gorm:"type:varchar(128)"`
	ComplianceFrameworks []string          `json:"compliance_frameworks,omitempty" gorm:"serializer:json"`
	Tags                 []string          `json:"tags,omitempty" gorm:"serializer:json"`
	Language             string            `json:"language,omitempty" gorm:"type:varchar(16)"`
	FileSize             int64             `json:"file_size" gorm:"default:0"`
	ContentHash          string            `json:"content_hash" gorm:"type:varchar(64);index"`
	CustomFields         map[string]string `json:"custom_fields,omitempty" gorm:"serializer:json"`

	State      FileState `json:"state" gorm:"type:varchar(32);default:'UPLOADED'"`
	ChunkCount int       `json:"chunk_count" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for FileRecord.
func (FileRecord) TableName() string {
	return "kb_files"
}
