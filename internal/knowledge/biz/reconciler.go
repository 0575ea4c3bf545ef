package biz

import (
	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/chunker"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/textutil"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// previewLen 预览文本的最大字符数。
const previewLen = 500

// Reconciler 将文件级元数据与单个分块整合为一条完整的向量库记录。
// 纯函数式：不访问外部资源，相同输入产生相同输出。
type Reconciler struct {
	defaultSecurity model.SecurityLevel
}

// NewReconciler 创建元数据整合器。defaultSecurity 在文件未声明
// 安全级别时生效，非法取值回退为 internal。
func NewReconciler(defaultSecurity model.SecurityLevel) *Reconciler {
	if !defaultSecurity.Valid() {
		defaultSecurity = model.SecurityInternal
	}
	return &Reconciler{defaultSecurity: defaultSecurity}
}

// Reconcile 生成分块级记录。缺失部门为致命错误，整个文件被拒绝。
func (r *Reconciler) Reconcile(file *model.FileRecord, chunk chunker.Chunk, proc model.ProcessingInfo) (*model.DocumentRecord, error) {
	if file.Department == "" {
		return nil, apierrors.ErrKBIncompleteMetadata.WithMessage("department is required")
	}
	if file.OrganizationType != "" && !file.OrganizationType.Valid() {
		return nil, apierrors.ErrKBIncompleteMetadata.WithMessagef(
			"unknown organization type %q", file.OrganizationType)
	}

	level := file.SecurityLevel
	if level == "" {
		level = r.defaultSecurity
	}
	if !level.Valid() {
		return nil, apierrors.ErrKBIncompleteMetadata.WithMessagef(
			"unknown security level %q", level)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = model.ContentDocument
	}
	if !contentType.Valid() {
		return nil, apierrors.ErrKBIncompleteMetadata.WithMessagef(
			"unknown content type %q", contentType)
	}

	var domain map[string]string
	if len(file.CustomFields) > 0 {
		domain = make(map[string]string, len(file.CustomFields))
		for k, v := range file.CustomFields {
			domain[k] = v
		}
	}

	return &model.DocumentRecord{
		Text: chunk.Text,
		Organizational: model.OrganizationalMeta{
			Department:       file.Department,
			Role:             file.Role,
			OrganizationType: file.OrganizationType,
			UploadedBy:       file.UploadedBy,
			AccessGroups:     textutil.DedupStrings(file.AccessGroups),
		},
		Content: model.ContentMeta{
			Title:       file.Title,
			Author:      file.Author,
			ContentType: contentType,
			Format:      file.Format,
			Category:    file.Category,
			Tags:        textutil.DedupStrings(file.Tags),
			Language:    file.Language,
			Preview:     textutil.TruncateString(chunk.Text, previewLen),
		},
		Processing: model.ProcessingMeta{
			SourceFileID:       proc.SourceFileID,
			ChunkIndex:         chunk.Index,
			ChunkCount:         proc.ChunkCount,
			StartOffset:        chunk.StartOffset,
			EndOffset:          chunk.EndOffset,
			EmbeddingModel:     proc.EmbeddingModel,
			ContentHash:        proc.ContentHash,
			ConfidenceScore:    proc.ConfidenceScore,
			ProcessingDuration: proc.ProcessingDuration,
			ProcessedAt:        proc.ProcessedAt,
		},
		DomainSpecific: domain,
		Compliance: model.ComplianceMeta{
			SecurityLevel: level,
			// 仅公开级别的内容视为已脱敏
			Anonymized:           level == model.SecurityPublic,
			ApprovedBy:           file.ApprovedBy,
			ComplianceFrameworks: textutil.DedupStrings(file.ComplianceFrameworks),
		},
	}, nil
}
