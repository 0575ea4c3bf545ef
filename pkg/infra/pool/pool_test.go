package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolDefaults(t *testing.T) {
	p, err := NewPool("ingest", nil)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "ingest", p.Name())
	assert.Equal(t, defaultCapacity, p.Cap())
}

func TestSubmitRunsAllTasks(t *testing.T) {
	p, err := NewPool("ingest", &Config{Capacity: 8})
	require.NoError(t, err)
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(100), p.Stats().Submitted)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("ingest", &Config{Capacity: 2})
	require.NoError(t, err)

	p.Release()
	// 重复 Release 为空操作
	p.Release()

	err = p.Submit(func() {
		t.Error("已关闭的池不应执行任务")
	})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestSubmitNonblockingOverload(t *testing.T) {
	p, err := NewPool("ingest", &Config{Capacity: 1, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release()

	done := make(chan struct{})
	defer close(done)
	require.NoError(t, p.Submit(func() { <-done }))

	// 唯一 worker 被占用，非阻塞模式下第二个任务被拒绝
	err = p.Submit(func() {
		t.Error("池满时不应执行任务")
	})
	assert.ErrorIs(t, err, ErrPoolOverload)
	assert.Equal(t, int64(1), p.Stats().Rejected)
}

func TestPanicRecovered(t *testing.T) {
	var caught atomic.Bool
	p, err := NewPool("ingest", &Config{
		Capacity:     2,
		PanicHandler: func(interface{}) { caught.Store(true) },
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() {
		panic("chunking blew up")
	}))

	assert.Eventually(t, caught.Load, time.Second, 10*time.Millisecond)
}
