package errors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Errno 是带错误码的结构化错误，中英文消息在注册时给定。
// 预定义的 Errno 是共享的，不要就地修改，用 With* 派生副本。
type Errno struct {
	// Code 唯一错误码，格式见 code.go
	Code int `json:"code"`

	// HTTP 对应的 HTTP 状态码
	HTTP int `json:"-"`

	// GRPCCode 对应的 gRPC 状态码
	GRPCCode codes.Code `json:"-"`

	// MessageEN 英文消息
	MessageEN string `json:"message"`

	// MessageZH 中文消息
	MessageZH string `json:"message_zh,omitempty"`

	// cause 底层错误
	cause error
}

// New 创建 Errno。业务代码一般不直接调用，而是经 Register 注册。
func New(code int, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{
		Code:      code,
		HTTP:      httpStatus,
		GRPCCode:  grpcCode,
		MessageEN: messageEN,
		MessageZH: messageZH,
	}
}

func (e *Errno) clone() *Errno {
	c := *e
	return &c
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap 返回底层错误，支持 errors.Is/As 链。
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause 派生一个带底层错误的副本。
func (e *Errno) WithCause(cause error) *Errno {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage 派生一个替换英文消息的副本，错误码不变。
func (e *Errno) WithMessage(msg string) *Errno {
	c := e.clone()
	c.MessageEN = msg
	return c
}

// WithMessagef 同 WithMessage，消息经 fmt.Sprintf 格式化。
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// HTTPStatus 返回 HTTP 状态码，未设置时按 500 处理。
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// Is 按错误码匹配，派生副本与原始 Errno 视为同一错误。
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}
