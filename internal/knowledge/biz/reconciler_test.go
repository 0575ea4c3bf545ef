package biz

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/model"
	"github.com/kart-io/knowledge-x/internal/pkg/kb/chunker"
	apierrors "github.com/kart-io/knowledge-x/pkg/utils/errors"
)

func testFileRecord() *model.FileRecord {
	return &model.FileRecord{
		ID:               "file-1",
		FileName:         "protocol.md",
		Title:            "Discharge Protocol",
		ContentType:      model.ContentDocument,
		Category:         "protocol",
		Department:       "cardiology",
		Role:             "nurse",
		OrganizationType: model.OrgHealthcare,
		UploadedBy:       "alice",
		SecurityLevel:    model.SecurityInternal,
		Tags:             []string{"discharge", "cardiology", "discharge"},
		Language:         "en",
		CustomFields:     map[string]string{"ward": "3b"},

		Author:               "Dr. Chen",
		Format:               "md",
		AccessGroups:         []string{"cardiology-staff", "nursing"},
		ApprovedBy:           "compliance-office",
		ComplianceFrameworks: []string{"HIPAA"},
	}
}

func testProcessingInfo() model.ProcessingInfo {
	return model.ProcessingInfo{
		SourceFileID:       "file-1",
		ChunkCount:         4,
		EmbeddingModel:     "nomic-embed-text",
		ContentHash:        "abc123",
		ConfidenceScore:    1.0,
		ProcessingDuration: 0.42,
		ProcessedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReconcileMapsAllFields(t *testing.T) {
	r := NewReconciler(model.SecurityInternal)
	chunk := chunker.Chunk{Text: "chunk body", Index: 2, StartOffset: 100, EndOffset: 110}

	rec, err := r.Reconcile(testFileRecord(), chunk, testProcessingInfo())
	require.NoError(t, err)

	assert.Equal(t, "chunk body", rec.Text)
	assert.Equal(t, "cardiology", rec.Organizational.Department)
	assert.Equal(t, "nurse", rec.Organizational.Role)
	assert.Equal(t, model.OrgHealthcare, rec.Organizational.OrganizationType)
	assert.Equal(t, "alice", rec.Organizational.UploadedBy)
	assert.Equal(t, []string{"cardiology-staff", "nursing"}, rec.Organizational.AccessGroups)

	assert.Equal(t, "Discharge Protocol", rec.Content.Title)
	assert.Equal(t, "Dr. Chen", rec.Content.Author)
	assert.Equal(t, model.ContentDocument, rec.Content.ContentType)
	assert.Equal(t, "md", rec.Content.Format)
	// 标签去重且保持首次出现顺序
	assert.Equal(t, []string{"discharge", "cardiology"}, rec.Content.Tags)
	assert.Equal(t, "chunk body", rec.Content.Preview)

	assert.Equal(t, "file-1", rec.Processing.SourceFileID)
	assert.Equal(t, 2, rec.Processing.ChunkIndex)
	assert.Equal(t, 4, rec.Processing.ChunkCount)
	assert.Equal(t, 100, rec.Processing.StartOffset)
	assert.Equal(t, 110, rec.Processing.EndOffset)
	assert.Equal(t, "nomic-embed-text", rec.Processing.EmbeddingModel)
	assert.Equal(t, "abc123", rec.Processing.ContentHash)
	assert.Equal(t, 1.0, rec.Processing.ConfidenceScore)
	assert.Equal(t, 0.42, rec.Processing.ProcessingDuration)

	assert.Equal(t, map[string]string{"ward": "3b"}, rec.DomainSpecific)
	assert.Equal(t, model.SecurityInternal, rec.Compliance.SecurityLevel)
	assert.False(t, rec.Compliance.Anonymized)
	assert.Equal(t, "compliance-office", rec.Compliance.ApprovedBy)
	assert.Equal(t, []string{"HIPAA"}, rec.Compliance.ComplianceFrameworks)
}

func TestReconcileDefaults(t *testing.T) {
	r := NewReconciler(model.SecurityInternal)
	chunk := chunker.Chunk{Text: "body", Index: 0}

	t.Run("安全级别缺失时使用默认值", func(t *testing.T) {
		file := testFileRecord()
		file.SecurityLevel = ""
		rec, err := r.Reconcile(file, chunk, testProcessingInfo())
		require.NoError(t, err)
		assert.Equal(t, model.SecurityInternal, rec.Compliance.SecurityLevel)
	})

	t.Run("内容形态缺失时按文档处理", func(t *testing.T) {
		file := testFileRecord()
		file.ContentType = ""
		rec, err := r.Reconcile(file, chunk, testProcessingInfo())
		require.NoError(t, err)
		assert.Equal(t, model.ContentDocument, rec.Content.ContentType)
	})

	t.Run("公开级别自动标记脱敏", func(t *testing.T) {
		file := testFileRecord()
		file.SecurityLevel = model.SecurityPublic
		rec, err := r.Reconcile(file, chunk, testProcessingInfo())
		require.NoError(t, err)
		assert.True(t, rec.Compliance.Anonymized)
	})
}

func TestReconcileRejectsIncompleteMetadata(t *testing.T) {
	r := NewReconciler(model.SecurityInternal)
	chunk := chunker.Chunk{Text: "body", Index: 0}

	t.Run("部门缺失", func(t *testing.T) {
		file := testFileRecord()
		file.Department = ""
		_, err := r.Reconcile(file, chunk, testProcessingInfo())
		assert.ErrorIs(t, err, apierrors.ErrKBIncompleteMetadata)
	})

	t.Run("组织类型非法", func(t *testing.T) {
		file := testFileRecord()
		file.OrganizationType = "nonprofit"
		_, err := r.Reconcile(file, chunk, testProcessingInfo())
		assert.ErrorIs(t, err, apierrors.ErrKBIncompleteMetadata)
	})

	t.Run("安全级别非法", func(t *testing.T) {
		file := testFileRecord()
		file.SecurityLevel = "ultra"
		_, err := r.Reconcile(file, chunk, testProcessingInfo())
		assert.ErrorIs(t, err, apierrors.ErrKBIncompleteMetadata)
	})
}

func TestReconcilePreviewTruncation(t *testing.T) {
	r := NewReconciler(model.SecurityInternal)
	long := strings.Repeat("甲", 600)
	chunk := chunker.Chunk{Text: long, Index: 0}

	rec, err := r.Reconcile(testFileRecord(), chunk, testProcessingInfo())
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(rec.Content.Preview)))
	assert.Equal(t, long, rec.Text)
}
