package model

// RouteKind 查询路由类型。
type RouteKind string

const (
	// RouteVector 仅走向量检索。
	RouteVector RouteKind = "vector"
	// RouteRelational 仅走关系库结构化查询。
	RouteRelational RouteKind = "relational"
	// RouteHybrid 两路并发执行后归并。
	RouteHybrid RouteKind = "hybrid"
)

// QueryRequest 一次知识库查询请求。除 Question 外均为可选过滤条件。
type QueryRequest struct {
	Question         string           `json:"question" binding:"required"`
	TopK             int              `json:"top_k,omitempty"`
	Collection       string           `json:"collection,omitempty"`
	Department       string           `json:"department,omitempty"`
	ContentType      ContentType      `json:"content_type,omitempty"`
	OrganizationType OrganizationType `json:"organization_type,omitempty"`
	UploadedBy       string           `json:"uploaded_by,omitempty"`
	SecurityCeiling  SecurityLevel    `json:"security_ceiling,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	WithAnswer       bool             `json:"with_answer,omitempty"`
}

// QueryHit 归并后的单条查询结果。
type QueryHit struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Score         float64       `json:"score"`
	Source        string        `json:"source"`
	Title         string        `json:"title,omitempty"`
	Department    string        `json:"department,omitempty"`
	ContentType   ContentType   `json:"content_type,omitempty"`
	SecurityLevel SecurityLevel `json:"security_level,omitempty"`
	SourceFileID  string        `json:"source_file_id,omitempty"`
	ChunkIndex    int           `json:"chunk_index"`
}

// QueryResponse 查询响应。Degraded 表示有后端不可用但仍返回了部分结果。
type QueryResponse struct {
	Route     RouteKind  `json:"route"`
	Hits      []QueryHit `json:"hits"`
	Count     int        `json:"count"`
	Answer    string     `json:"answer,omitempty"`
	Degraded  bool       `json:"degraded,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	Cached    bool       `json:"cached,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms"`
}
