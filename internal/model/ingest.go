package model

import "time"

// IngestMeta 摄入时由调用方提供的文件级元数据。
// Department 为必填项，缺失时整个文件被拒绝。
type IngestMeta struct {
	FileName             string            `json:"file_name,omitempty"`
	Title                string            `json:"title,omitempty"`
	Author               string            `json:"author,omitempty"`
	ContentType          ContentType       `json:"content_type,omitempty"`
	Format               string            `json:"format,omitempty"`
	Category             string            `json:"category,omitempty"`
	Department           string            `json:"department"`
	Role                 string            `json:"role,omitempty"`
	OrganizationType     OrganizationType  `json:"organization_type,omitempty"`
	UploadedBy           string            `json:"uploaded_by,omitempty"`
	AccessGroups         []string          `json:"access_groups,omitempty"`
	SecurityLevel        SecurityLevel     `json:"security_level,omitempty"`
	ApprovedBy           string            `json:"approved_by,omitempty"`
	ComplianceFrameworks []string          `json:"compliance_frameworks,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
	Language             string            `json:"language,omitempty"`
	CustomFields         map[string]string `json:"custom_fields,omitempty"`
}

// IngestRequest 单文件摄入请求。FilePath 与 Content 二选一，
// 提供 Content 时 FileName 用于扩展名判定。
type IngestRequest struct {
	FilePath string     `json:"file_path,omitempty"`
	Content  string     `json:"content,omitempty"`
	Meta     IngestMeta `json:"meta"`
}

// IngestDirectoryRequest 目录批量摄入请求。Meta 应用到目录下的每个文件，
// FileName 与 Title 按文件各自推导。
type IngestDirectoryRequest struct {
	Directory  string     `json:"directory" binding:"required"`
	Extensions []string   `json:"extensions,omitempty"`
	Meta       IngestMeta `json:"meta"`
}

// DirectoryIngestResult 目录摄入的汇总结果。
type DirectoryIngestResult struct {
	Directory  string          `json:"directory"`
	FilesTotal int             `json:"files_total"`
	Results    []*IngestResult `json:"results"`
}

// ProcessingInfo 编排器在元数据整合时传入的处理上下文，
// 对文件内所有分块一致。
type ProcessingInfo struct {
	SourceFileID       string    `json:"source_file_id"`
	ChunkCount         int       `json:"chunk_count"`
	EmbeddingModel     string    `json:"embedding_model,omitempty"`
	ContentHash        string    `json:"content_hash"`
	ConfidenceScore    float64   `json:"confidence_score"`
	ProcessingDuration float64   `json:"processing_duration,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// ChunkFailure 记录单个分块的失败原因。
type ChunkFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Reason     string `json:"reason"`
	Code       int    `json:"code,omitempty"`
}

// IngestResult 是一次文件入库的最终结果。
// 各分块相互隔离：部分失败不终止其余分块。
type IngestResult struct {
	FileID        string         `json:"file_id"`
	Collection    string         `json:"collection"`
	State         FileState      `json:"state"`
	ChunksTotal   int            `json:"chunks_total"`
	ChunksStored  int            `json:"chunks_stored"`
	ChunksSkipped int            `json:"chunks_skipped"`
	Failures      []ChunkFailure `json:"failures,omitempty"`
}

// ResolveState 根据分块结果推导终态。
func (r *IngestResult) ResolveState() FileState {
	switch {
	case r.ChunksTotal == 0:
		return StateFailed
	case len(r.Failures) == 0:
		return StateStored
	case r.ChunksStored+r.ChunksSkipped > 0:
		return StatePartiallyStored
	default:
		return StateFailed
	}
}
