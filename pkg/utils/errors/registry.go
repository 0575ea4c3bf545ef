package errors

import (
	"fmt"
	"sync"
)

// 错误码注册表。所有 Errno 在包初始化时经 Register 登记，
// 重复的码直接 panic，让冲突在启动阶段暴露。
var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register 登记一个 Errno 并校验错误码唯一。
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup 按错误码查找已注册的 Errno。
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}
