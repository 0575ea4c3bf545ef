// Package response 定义统一的 API 响应结构。
// 所有 HTTP 接口都通过 httputils.WriteResponse 输出这个格式。
package response

import (
	"net/http"

	"github.com/kart-io/knowledge-x/pkg/utils/errors"
)

// Response 统一响应体。Code 为 0 表示成功。
type Response struct {
	// Code 业务错误码（0 = 成功）
	Code int `json:"code"`

	// HTTPCode HTTP 状态码，方便客户端直接读取
	HTTPCode int `json:"http_code,omitempty"`

	// Message 给人看的消息
	Message string `json:"message"`

	// Data 响应数据，出错时为 nil
	Data interface{} `json:"data,omitempty"`

	// RequestID 请求标识，用于链路追踪
	RequestID string `json:"request_id,omitempty"`

	// Timestamp 响应时间戳（Unix 毫秒）
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success 构造成功响应。
func Success(data interface{}) *Response {
	r := Acquire()
	r.Code = 0
	r.HTTPCode = http.StatusOK
	r.Message = "success"
	r.Data = data
	return r
}

// Err 从 Errno 构造错误响应。nil Errno 视为成功。
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	r := Acquire()
	r.Code = e.Code
	r.HTTPCode = e.HTTPStatus()
	r.Message = e.MessageEN
	return r
}

// HTTPStatus 返回响应对应的 HTTP 状态码。
// HTTPCode 未设置时按错误码注册表查找，再退回按错误码类别推断。
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}

	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
