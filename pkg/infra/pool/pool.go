package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

const (
	// defaultCapacity 未配置容量时的 worker 数
	defaultCapacity = 4
	// defaultExpiry goroutine 空闲回收时间
	defaultExpiry = 10 * time.Second
)

// Config 池配置。
type Config struct {
	// Capacity 最大并发 worker 数，0 或负数取默认值
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// Nonblocking 池满时 Submit 立即返回 ErrPoolOverload 而不是排队
	Nonblocking bool
	// PanicHandler 任务 panic 处理函数，缺省记录日志
	PanicHandler func(interface{})
}

// Pool 固定容量的 worker 池。摄入流水线用它限制并发的
// 提取、切分与向量化任务数，避免大文件上传打满进程。
type Pool struct {
	name      string
	pool      *ants.Pool
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	closed    atomic.Bool
	closedMu  sync.Mutex
}

// Stats 池统计快照。
type Stats struct {
	Submitted int64 // 已提交任务数
	Completed int64 // 已完成任务数
	Rejected  int64 // 拒绝任务数
	Running   int   // 正在运行的 worker 数
}

// NewPool 创建 worker 池。cfg 为 nil 时全部取默认值。
func NewPool(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	expiry := cfg.ExpiryDuration
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	panicHandler := cfg.PanicHandler
	if panicHandler == nil {
		panicHandler = func(r interface{}) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}
	}

	inner, err := ants.NewPool(capacity,
		ants.WithExpiryDuration(expiry),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(panicHandler),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}

	logger.Infow("Worker pool created", "name", name, "capacity", capacity)
	return &Pool{name: name, pool: inner}, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Submit 提交任务。池已关闭返回 ErrPoolClosed，
// 非阻塞模式下池满返回 ErrPoolOverload。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer p.completed.Add(1)
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.rejected.Add(1)
			return ErrPoolOverload
		}
		return err
	}
	p.submitted.Add(1)
	return nil
}

// Release 关闭池并释放资源。在途任务继续执行完毕。
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name, "completed", p.completed.Load())
}

// ReleaseTimeout 关闭池，最多等待 timeout 让在途任务收尾。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Running:   p.pool.Running(),
	}
}
