package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/knowledge-x/internal/model"
)

func testRecord() *model.DocumentRecord {
	return &model.DocumentRecord{
		Text: "patient discharge protocol",
		Organizational: model.OrganizationalMeta{
			Department:       "cardiology",
			Role:             "nurse",
			OrganizationType: model.OrgHealthcare,
			UploadedBy:       "alice",
		},
		Content: model.ContentMeta{
			ContentType: model.ContentDocument,
			Category:    "protocol",
			Tags:        []string{"discharge", "cardiology"},
			Language:    "en",
		},
		Processing: model.ProcessingMeta{
			SourceFileID: "file-1",
			ChunkIndex:   2,
			ContentHash:  "abc123",
		},
		Compliance: model.ComplianceMeta{
			SecurityLevel: model.SecurityInternal,
		},
	}
}

func TestEqFilter(t *testing.T) {
	rec := testRecord()

	tests := []struct {
		name    string
		expr    FilterExpr
		matches bool
	}{
		{"部门命中", &Eq{Field: "department", Value: "cardiology"}, true},
		{"部门不命中", &Eq{Field: "department", Value: "oncology"}, false},
		{"分块序号命中", &Eq{Field: "chunk_index", Value: 2}, true},
		{"分块序号 int64 命中", &Eq{Field: "chunk_index", Value: int64(2)}, true},
		{"匿名化标志", &Eq{Field: "anonymized", Value: false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.expr.Matches(rec))
		})
	}
}

func TestEqRender(t *testing.T) {
	expr := &Eq{Field: "department", Value: "cardiology"}
	s, err := expr.Render()
	require.NoError(t, err)
	assert.Equal(t, `department == "cardiology"`, s)
}

func TestInFilter(t *testing.T) {
	rec := testRecord()

	expr := &In{Field: "content_type", Values: []any{"document", "image"}}
	assert.True(t, expr.Matches(rec))

	s, err := expr.Render()
	require.NoError(t, err)
	assert.Equal(t, `content_type in ["document", "image"]`, s)

	empty := &In{Field: "content_type"}
	assert.Error(t, empty.Validate())
}

func TestRangeFilter(t *testing.T) {
	rec := testRecord()
	lo, hi := int64(1), int64(5)

	expr := &Range{Field: "chunk_index", Min: &lo, Max: &hi}
	require.NoError(t, expr.Validate())
	assert.True(t, expr.Matches(rec))

	s, err := expr.Render()
	require.NoError(t, err)
	assert.Equal(t, "chunk_index >= 1 and chunk_index <= 5", s)

	outside := int64(3)
	assert.False(t, (&Range{Field: "chunk_index", Min: &outside}).Matches(rec))

	unbounded := &Range{Field: "chunk_index"}
	assert.Error(t, unbounded.Validate())
}

func TestAndOrFilters(t *testing.T) {
	rec := testRecord()

	and := &And{Exprs: []FilterExpr{
		&Eq{Field: "department", Value: "cardiology"},
		&Eq{Field: "security_level", Value: "internal"},
	}}
	assert.True(t, and.Matches(rec))

	s, err := and.Render()
	require.NoError(t, err)
	assert.Equal(t, `(department == "cardiology") and (security_level == "internal")`, s)

	or := &Or{Exprs: []FilterExpr{
		&Eq{Field: "department", Value: "oncology"},
		&Eq{Field: "uploaded_by", Value: "alice"},
	}}
	assert.True(t, or.Matches(rec))

	assert.Error(t, (&And{}).Validate())
	assert.Error(t, (&Or{}).Validate())
}

func TestSecurityAtMostFilter(t *testing.T) {
	rec := testRecord() // internal

	tests := []struct {
		name    string
		ceiling model.SecurityLevel
		matches bool
	}{
		{"上限 public 拒绝 internal", model.SecurityPublic, false},
		{"上限 internal 接受 internal", model.SecurityInternal, true},
		{"上限 classified 接受 internal", model.SecurityClassified, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := &SecurityAtMost{Ceiling: tt.ceiling}
			assert.Equal(t, tt.matches, expr.Matches(rec))
		})
	}

	s, err := (&SecurityAtMost{Ceiling: model.SecurityInternal}).Render()
	require.NoError(t, err)
	assert.Equal(t, `security_level in ["public", "internal"]`, s)

	assert.Error(t, (&SecurityAtMost{Ceiling: "bogus"}).Validate())
}

func TestTagsFilter(t *testing.T) {
	rec := testRecord()

	eq := &Eq{Field: "tags", Value: "discharge"}
	require.NoError(t, eq.Validate())
	assert.True(t, eq.Matches(rec))
	assert.False(t, (&Eq{Field: "tags", Value: "billing"}).Matches(rec))

	s, err := eq.Render()
	require.NoError(t, err)
	assert.Equal(t, `array_contains(tags, "discharge")`, s)

	in := &In{Field: "tags", Values: []any{"billing", "cardiology"}}
	require.NoError(t, in.Validate())
	assert.True(t, in.Matches(rec))

	s, err = in.Render()
	require.NoError(t, err)
	assert.Equal(t, `array_contains_any(tags, ["billing", "cardiology"])`, s)

	assert.Error(t, (&Eq{Field: "tags", Value: 7}).Validate())
}

func TestFilterFieldWhitelist(t *testing.T) {
	expr := &Eq{Field: "salary", Value: 100}
	assert.Error(t, expr.Validate())
}
