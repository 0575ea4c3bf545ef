// Package pool 封装 ants goroutine 池，供摄入流水线的后台 worker 使用。
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("池已关闭")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("池已满")
)
