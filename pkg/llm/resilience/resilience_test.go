package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerLifecycle(t *testing.T) {
	providerDown := errors.New("embedding endpoint unreachable")

	t.Run("成功调用保持关闭", func(t *testing.T) {
		cb := NewCircuitBreaker(nil)
		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("连续失败达到阈值后打开", func(t *testing.T) {
		cb := NewCircuitBreaker(&CircuitBreakerConfig{
			MaxFailures: 3, Timeout: time.Second, HalfOpenMaxCalls: 1,
		})
		for i := 0; i < 3; i++ {
			assert.Error(t, cb.Execute(func() error { return providerDown }))
		}
		assert.Equal(t, StateOpen, cb.State())

		err := cb.Execute(func() error { return nil })
		assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	})

	t.Run("超时后探测成功恢复关闭", func(t *testing.T) {
		cb := NewCircuitBreaker(&CircuitBreakerConfig{
			MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenMaxCalls: 1,
		})
		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error { return providerDown })
		}
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(80 * time.Millisecond)
		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("探测失败重新打开", func(t *testing.T) {
		cb := NewCircuitBreaker(&CircuitBreakerConfig{
			MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenMaxCalls: 1,
		})
		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error { return providerDown })
		}

		time.Sleep(80 * time.Millisecond)
		assert.Error(t, cb.Execute(func() error { return providerDown }))
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("统计快照", func(t *testing.T) {
		cb := NewCircuitBreaker(nil)
		assert.Equal(t, CircuitStats{State: "closed", Failures: 0}, cb.Stats())

		_ = cb.Execute(func() error { return providerDown })
		assert.Equal(t, 1, cb.Stats().Failures)
	})
}

func fastRetryConfig(retryable func(error) bool) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    10 * time.Millisecond,
		MaxDelay:        100 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: retryable,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	flaky := errors.New("transient embedding failure")

	t.Run("首次成功不重试", func(t *testing.T) {
		calls := 0
		require.NoError(t, RetryWithBackoff(ctx, fastRetryConfig(nil), func() error {
			calls++
			return nil
		}))
		assert.Equal(t, 1, calls)
	})

	t.Run("瞬态故障重试后成功", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, fastRetryConfig(nil), func() error {
			calls++
			if calls < 3 {
				return flaky
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("重试耗尽后包装原始错误", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, fastRetryConfig(nil), func() error {
			calls++
			return flaky
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, flaky)
		assert.Contains(t, err.Error(), "max retry attempts")
	})

	t.Run("不可重试错误原样上抛", func(t *testing.T) {
		permanent := errors.New("invalid api key")
		calls := 0
		err := RetryWithBackoff(ctx, fastRetryConfig(func(err error) bool {
			return !errors.Is(err, permanent)
		}), func() error {
			calls++
			return permanent
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, permanent, err)
	})

	t.Run("上下文取消终止退避等待", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cfg := &RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		}
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		err := RetryWithBackoff(cancelCtx, cfg, func() error { return flaky })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryWithCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	providerDown := errors.New("chat endpoint unreachable")

	retry := fastRetryConfig(func(err error) bool {
		return !errors.Is(err, ErrCircuitBreakerOpen)
	})
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1,
	})

	// 重试会把熔断器打满
	err := RetryWithCircuitBreaker(ctx, retry, cb, func() error { return providerDown })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	// 打开后直接拒绝，不再触达底层
	calls := 0
	err = RetryWithCircuitBreaker(ctx, retry, cb, func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Zero(t, calls)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"空错误", nil, false},
		{"熔断拒绝", ErrCircuitBreakerOpen, false},
		{"上下文取消", context.Canceled, false},
		{"上下文超时", context.DeadlineExceeded, false},
		{"服务端 5xx", fmt.Errorf("request failed with status code 502"), true},
		{"限流 429", fmt.Errorf("request failed with status code 429"), true},
		{"连接重置", errors.New("read: connection reset by peer"), true},
		{"客户端 4xx", fmt.Errorf("request failed with status code 401"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
		})
	}
}
