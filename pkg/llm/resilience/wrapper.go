package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kart-io/knowledge-x/pkg/llm"
)

// call 带重试与熔断执行一次返回值调用。
func call[T any](ctx context.Context, retry *RetryConfig, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := RetryWithCircuitBreaker(ctx, retry, cb, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	return result, err
}

func normalizeConfigs(retryConfig *RetryConfig, cbConfig *CircuitBreakerConfig) (*RetryConfig, *CircuitBreaker) {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}
	return retryConfig, NewCircuitBreaker(cbConfig)
}

// ResilientEmbeddingProvider 带重试与熔断的 Embedding 供应商包装器。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

var _ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)

// NewResilientEmbeddingProvider 包装 Embedding 供应商。
// 两个配置都可以传 nil 取默认值。
func NewResilientEmbeddingProvider(
	provider llm.EmbeddingProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientEmbeddingProvider {
	retry, cb := normalizeConfigs(retryConfig, cbConfig)
	return &ResilientEmbeddingProvider{provider: provider, retry: retry, cb: cb}
}

// Embed 批量向量化，带重试与熔断。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return call(ctx, r.retry, r.cb, func() ([][]float32, error) {
		return r.provider.Embed(ctx, texts)
	})
}

// EmbedSingle 单文本向量化，带重试与熔断。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, r.retry, r.cb, func() ([]float32, error) {
		return r.provider.EmbedSingle(ctx, text)
	})
}

// Name 返回底层供应商名称加 -resilient 后缀。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 返回熔断器实例，供状态观测。
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// ResilientChatProvider 带重试与熔断的 Chat 供应商包装器。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

var _ llm.ChatProvider = (*ResilientChatProvider)(nil)

// NewResilientChatProvider 包装 Chat 供应商。
// 两个配置都可以传 nil 取默认值。
func NewResilientChatProvider(
	provider llm.ChatProvider,
	retryConfig *RetryConfig,
	cbConfig *CircuitBreakerConfig,
) *ResilientChatProvider {
	retry, cb := normalizeConfigs(retryConfig, cbConfig)
	return &ResilientChatProvider{provider: provider, retry: retry, cb: cb}
}

// Chat 多轮对话，带重试与熔断。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return call(ctx, r.retry, r.cb, func() (string, error) {
		return r.provider.Chat(ctx, messages)
	})
}

// Generate 单轮生成，带重试与熔断。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return call(ctx, r.retry, r.cb, func() (string, error) {
		return r.provider.Generate(ctx, prompt, systemPrompt)
	})
}

// Name 返回底层供应商名称加 -resilient 后缀。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 返回熔断器实例，供状态观测。
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// IsRetryableError 默认的可重试判定：网络故障和服务端的
// 5xx/429/408 可重试，熔断拒绝与上下文取消不可重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// 供应商 HTTP 客户端把状态码编进错误文本
	msg := err.Error()
	switch {
	case strings.Contains(msg, "status code 5"),
		strings.Contains(msg, "status code 429"),
		strings.Contains(msg, "status code 408"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "EOF"),
		strings.Contains(msg, "connection reset"):
		return true
	}
	return false
}
