package errors

import "google.golang.org/grpc/codes"

// 通用错误码 (服务代码 00)。
var (
	// OK indicates success.
	OK = &Errno{Code: 0, HTTP: 200, GRPCCode: codes.OK, MessageEN: "OK", MessageZH: "成功"}

	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), 400, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrNotFound   = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), 404, codes.NotFound, "Resource not found", "资源不存在"))
	ErrInternal   = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), 500, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrTimeout    = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Operation timeout", "操作超时"))

	// 基础设施错误。
	ErrDatabase = Register(New(MakeCode(ServiceInfraDB, CategoryDatabase, 1), 500, codes.Internal, "Database error", "数据库错误"))
	ErrCache    = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 1), 500, codes.Internal, "Cache error", "缓存错误"))
)
