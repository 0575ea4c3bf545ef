// Package resilience 为模型供应商调用提供重试与熔断。
// 向量化和问答生成都走远端推理服务，这层把抖动和短暂故障
// 挡在检索链路之外。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen 熔断器打开，调用被拒绝。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数，含首次调用
	MaxAttempts int
	// InitialDelay 首次重试前的延迟
	InitialDelay time.Duration
	// MaxDelay 退避延迟上限
	MaxDelay time.Duration
	// Multiplier 指数退避倍数
	Multiplier float64
	// RetryableErrors 判定错误是否可重试，nil 表示全部可重试
	RetryableErrors func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败多少次后打开熔断器
	MaxFailures int
	// Timeout 打开状态持续多久后转半开
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态放行的探测调用数
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreakerState 熔断器状态。
type CircuitBreakerState int

const (
	// StateClosed 正常放行
	StateClosed CircuitBreakerState = iota
	// StateOpen 拒绝所有调用
	StateOpen
	// StateHalfOpen 放行少量探测调用
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitStats 熔断器统计快照。
type CircuitStats struct {
	State    string
	Failures int
}

// CircuitBreaker 计数式熔断器。连续失败达到阈值后打开，
// 超时后放行探测调用，探测成功即恢复。
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu            sync.Mutex
	state         CircuitBreakerState
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// NewCircuitBreaker 创建熔断器。config 为 nil 时取默认配置。
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute 通过熔断器执行 fn。打开状态返回 ErrCircuitBreakerOpen。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) <= cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		logger.Infow("circuit breaker half-open, probing")
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 1
		return nil
	default: // StateHalfOpen
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCalls++
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == StateHalfOpen {
			logger.Infow("circuit breaker closed after successful probe")
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.openedAt = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			logger.Warnw("circuit breaker opened",
				"failures", cb.failures,
				"max_failures", cb.config.MaxFailures,
			)
			cb.state = StateOpen
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opened, probe failed")
		cb.state = StateOpen
	}
}

// State 返回当前状态。
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats 返回统计快照。
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitStats{State: cb.state.String(), Failures: cb.failures}
}

// RetryWithBackoff 按指数退避重试 fn。不可重试的错误原样返回，
// 上下文取消立即终止等待。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	delay := config.InitialDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if config.RetryableErrors != nil && !config.RetryableErrors(lastErr) {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) reached: %w", config.MaxAttempts, lastErr)
		}

		logger.Debugw("retrying provider call",
			"attempt", attempt,
			"delay", delay,
			"error", lastErr.Error(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}

// RetryWithCircuitBreaker 每次重试都经过熔断器。
func RetryWithCircuitBreaker(
	ctx context.Context,
	retryConfig *RetryConfig,
	cb *CircuitBreaker,
	fn func() error,
) error {
	return RetryWithBackoff(ctx, retryConfig, func() error {
		return cb.Execute(fn)
	})
}
