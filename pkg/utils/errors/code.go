// Package errors 是知识服务统一的错误码体系。
//
// 错误码格式 AABBCCC（7 位十进制）：
//
//   - AA:  服务段（00 通用，10-19 基础设施，21 知识库服务）
//   - BB:  类别段，决定 HTTP 状态码的归类
//   - CCC: 序号
//
// 类别段（BB）：
//
//   - 00: 成功
//   - 01: 请求/校验错误（400）
//   - 04: 资源不存在（404）
//   - 05: 冲突（409）
//   - 07: 内部错误（500）
//   - 08: 数据库错误（500）
//   - 09: 缓存错误（500）
//   - 10: 网络错误（502/503）
//   - 11: 超时（504）
//   - 12: 配置错误（500）
package errors

// 服务段（AA）
const (
	// ServiceCommon 各服务共享的通用错误。
	ServiceCommon = 0

	// ServiceInfraDB 数据库基础设施。
	ServiceInfraDB = 10

	// ServiceInfraCache 缓存基础设施。
	ServiceInfraCache = 11

	// ServiceKnowledge 知识库服务。
	ServiceKnowledge = 21
)

// 类别段（BB）
const (
	CategorySuccess  = 0
	CategoryRequest  = 1
	CategoryResource = 4
	CategoryConflict = 5
	CategoryInternal = 7
	CategoryDatabase = 8
	CategoryCache    = 9
	CategoryNetwork  = 10
	CategoryTimeout  = 11
	CategoryConfig   = 12
)

// MakeCode 按 AABBCCC 组装错误码。
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode 把错误码拆回服务段、类别段和序号。
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// GetCategory 取错误码的类别段。
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError 判断错误码是否属于客户端错误（4xx 类别）。
func IsClientError(code int) bool {
	category := GetCategory(code)
	return category >= CategoryRequest && category <= CategoryConflict
}

// IsServerError 判断错误码是否属于服务端错误（5xx 类别）。
func IsServerError(code int) bool {
	category := GetCategory(code)
	return category >= CategoryInternal && category <= CategoryConfig
}
