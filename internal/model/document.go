// Package model 定义知识库服务的核心数据模型。
package model

import "time"

// OrganizationType 组织类型。
type OrganizationType string

const (
	OrgHealthcare OrganizationType = "healthcare"
	OrgUniversity OrganizationType = "university"
	OrgCorporate  OrganizationType = "corporate"
)

// Valid reports whether t is a known organization type.
func (t OrganizationType) Valid() bool {
	switch t {
	case OrgHealthcare, OrgUniversity, OrgCorporate:
		return true
	}
	return false
}

// ContentType 内容模态。
type ContentType string

const (
	ContentDocument   ContentType = "document"
	ContentImage      ContentType = "image"
	ContentAudio      ContentType = "audio"
	ContentVideo      ContentType = "video"
	ContentStructured ContentType = "structured_data"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentDocument, ContentImage, ContentAudio, ContentVideo, ContentStructured:
		return true
	}
	return false
}

// SecurityLevel 安全级别，封闭枚举且全序：
// public < internal < restricted < confidential < classified。
type SecurityLevel string

const (
	SecurityPublic       SecurityLevel = "public"
	SecurityInternal     SecurityLevel = "internal"
	SecurityRestricted   SecurityLevel = "restricted"
	SecurityConfidential SecurityLevel = "confidential"
	SecurityClassified   SecurityLevel = "classified"
)

var securityRanks = map[SecurityLevel]int{
	SecurityPublic:       0,
	SecurityInternal:     1,
	SecurityRestricted:   2,
	SecurityConfidential: 3,
	SecurityClassified:   4,
}

// Rank 返回级别在全序中的位置，未知级别返回 -1。
func (l SecurityLevel) Rank() int {
	if r, ok := securityRanks[l]; ok {
		return r
	}
	return -1
}

// Valid reports whether l is a known security level.
func (l SecurityLevel) Valid() bool {
	_, ok := securityRanks[l]
	return ok
}

// AtMost reports whether l is at or below the given ceiling.
// Unknown levels are never admitted.
func (l SecurityLevel) AtMost(ceiling SecurityLevel) bool {
	lr, cr := l.Rank(), ceiling.Rank()
	return lr >= 0 && cr >= 0 && lr <= cr
}

// LevelsAtMost 返回不高于给定级别的全部级别，按序排列。
func LevelsAtMost(ceiling SecurityLevel) []SecurityLevel {
	cr := ceiling.Rank()
	if cr < 0 {
		return nil
	}
	all := []SecurityLevel{SecurityPublic, SecurityInternal, SecurityRestricted, SecurityConfidential, SecurityClassified}
	return all[:cr+1]
}

// OrganizationalMeta 组织维度元数据。
type OrganizationalMeta struct {
	Department       string           `json:"department"`
	Role             string           `json:"role,omitempty"`
	OrganizationType OrganizationType `json:"organization_type"`
	UploadedBy       string           `json:"uploaded_by,omitempty"`
	AccessGroups     []string         `json:"access_groups,omitempty"`
}

// ContentMeta 内容维度元数据。
type ContentMeta struct {
	Title       string      `json:"title,omitempty"`
	Author      string      `json:"author,omitempty"`
	ContentType ContentType `json:"content_type"`
	Format      string      `json:"format,omitempty"`
	Category    string      `json:"category,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Language    string      `json:"language,omitempty"`
	Preview     string      `json:"preview,omitempty"`
}

// ProcessingMeta 处理过程元数据。ProcessingDuration 单位为秒。
type ProcessingMeta struct {
	SourceFileID       string    `json:"source_file_id"`
	ChunkIndex         int       `json:"chunk_index"`
	ChunkCount         int       `json:"chunk_count"`
	StartOffset        int       `json:"start_offset"`
	EndOffset          int       `json:"end_offset"`
	EmbeddingModel     string    `json:"embedding_model,omitempty"`
	ContentHash        string    `json:"content_hash"`
	ConfidenceScore    float64   `json:"confidence_score"`
	ProcessingDuration float64   `json:"processing_duration,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// ComplianceMeta 合规维度元数据。
type ComplianceMeta struct {
	SecurityLevel        SecurityLevel `json:"security_level"`
	Anonymized           bool          `json:"anonymized"`
	ApprovedBy           string        `json:"approved_by,omitempty"`
	ComplianceFrameworks []string      `json:"compliance_frameworks,omitempty"`
	RetainUntil          *time.Time    `json:"retain_until,omitempty"`
}

// DocumentRecord 是向量库中一条分块级记录的完整形态。
// 五组元数据与分块文本、向量一同落库。
type DocumentRecord struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	Organizational OrganizationalMeta `json:"organizational"`
	Content        ContentMeta        `json:"content"`
	Processing     ProcessingMeta     `json:"processing"`
	DomainSpecific map[string]string  `json:"domain_specific,omitempty"`
	Compliance     ComplianceMeta     `json:"compliance"`
}
