package errors

import "google.golang.org/grpc/codes"

// 知识库服务代码: 21 (业务服务范围 20-79)
// 错误码格式: AABBCCC
// - AA: 21 (知识库服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 输入错误 (类别 01) - 重试无意义。
	ErrKBInvalidRequest     = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrKBOversizeInput      = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 2), 400, codes.InvalidArgument, "Document exceeds maximum size", "文档超过大小上限"))
	ErrKBEmptyContent       = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 3), 400, codes.InvalidArgument, "Extracted content is empty", "提取内容为空"))
	ErrKBIncompleteMetadata = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 4), 400, codes.InvalidArgument, "Required metadata is missing", "必填元数据缺失"))
	ErrKBInvalidFilter      = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 5), 400, codes.InvalidArgument, "Invalid filter expression", "过滤表达式无效"))
	ErrKBInvalidDirectory   = Register(New(MakeCode(ServiceKnowledge, CategoryRequest, 6), 400, codes.InvalidArgument, "Invalid directory path", "目录路径无效"))

	// 模式错误 (类别 05) - 配置与数据不一致，不重试。
	ErrKBSchemaConflict    = Register(New(MakeCode(ServiceKnowledge, CategoryConflict, 1), 409, codes.AlreadyExists, "Collection exists with different schema", "集合已存在且模式不一致"))
	ErrKBDimensionMismatch = Register(New(MakeCode(ServiceKnowledge, CategoryConflict, 2), 409, codes.FailedPrecondition, "Vector dimension mismatch", "向量维度不匹配"))
	ErrKBDuplicateChunk    = Register(New(MakeCode(ServiceKnowledge, CategoryConflict, 3), 409, codes.AlreadyExists, "Chunk already stored for this file", "分块已存储"))

	// 处理错误 (类别 07)。
	ErrKBExtractionFailed = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 1), 500, codes.Internal, "Content extraction failed", "内容提取失败"))
	ErrKBEmbeddingFailed  = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 2), 500, codes.Internal, "Embedding generation failed", "向量生成失败"))
	ErrKBIngestFailed     = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 3), 500, codes.Internal, "Document ingestion failed", "文档入库失败"))
	ErrKBQueryFailed      = Register(New(MakeCode(ServiceKnowledge, CategoryInternal, 4), 500, codes.Internal, "Query execution failed", "查询执行失败"))

	// 资源错误 (类别 04)。
	ErrKBCollectionNotFound = Register(New(MakeCode(ServiceKnowledge, CategoryResource, 1), 404, codes.NotFound, "Collection not found", "集合不存在"))
	ErrKBFileNotFound       = Register(New(MakeCode(ServiceKnowledge, CategoryResource, 2), 404, codes.NotFound, "File record not found", "文件记录不存在"))

	// 后端错误 (类别 10)。
	ErrKBStoreUnavailable   = Register(New(MakeCode(ServiceKnowledge, CategoryNetwork, 1), 503, codes.Unavailable, "Vector store unavailable", "向量存储不可用"))
	ErrKBNoBackendAvailable = Register(New(MakeCode(ServiceKnowledge, CategoryNetwork, 2), 503, codes.Unavailable, "No query backend available", "无可用查询后端"))

	// 超时 (类别 11)。
	ErrKBQueryTimeout = Register(New(MakeCode(ServiceKnowledge, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Query timeout", "查询超时"))
)
