// Package lifecycle 按阶段顺序启动与停止进程内的组件。
//
// 启动顺序：连接器 -> HTTP 服务器 -> 服务注册；停止时严格逆序，
// 因此服务先从注册中心注销，再关闭 HTTP 服务器，最后释放连接。
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

// 启动阶段，数值越小越先启动
const (
	PhaseConnector    = 10 // 外部连接
	PhaseServer       = 20 // HTTP 监听
	PhaseRegistration = 30 // 服务注册
)

// Lifecycle 可由 Manager 管理生命周期的对象
type Lifecycle interface {
	// Start 启动服务，Phase 越小越先启动
	Start(ctx context.Context) error
	// Stop 关闭服务，按启动的逆序调用
	Stop(ctx context.Context) error
	// Phase 返回启动阶段，用于排序
	Phase() int
}

// Hook 以函数形式实现 Lifecycle，OnStart / OnStop 可为 nil
type Hook struct {
	StartPhase int
	OnStart    func(ctx context.Context) error
	OnStop     func(ctx context.Context) error
}

func (h Hook) Start(ctx context.Context) error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart(ctx)
}

func (h Hook) Stop(ctx context.Context) error {
	if h.OnStop == nil {
		return nil
	}
	return h.OnStop(ctx)
}

func (h Hook) Phase() int { return h.StartPhase }

// Item 已注册的生命周期对象
type Item struct {
	Name     string
	Instance Lifecycle
}

type entry struct {
	Item
	seq int
}

// Manager 生命周期管理器，并发安全
type Manager struct {
	mu      sync.Mutex
	items   []entry
	started []entry
	logger  clog.Logger
}

// Option Manager 选项
type Option func(*Manager)

// WithLogger 设置日志记录器，自动追加 "lifecycle" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.WithNamespace("lifecycle")
		}
	}
}

// NewManager 创建生命周期管理器
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: clog.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register 注册生命周期对象，同阶段内按注册顺序启动
func (m *Manager) Register(name string, instance Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, entry{Item: Item{Name: name, Instance: instance}, seq: len(m.items)})
}

// StartAll 按阶段顺序启动所有对象，遇到第一个错误即返回 *Error。
// 已启动的对象不会自动停止，调用方应随后调用 StopAll。
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := append([]entry(nil), m.items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Instance.Phase() < items[j].Instance.Phase()
	})

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return &Error{Phase: item.Instance.Phase(), Name: item.Name, Cause: err}
		}
		if m.isStarted(item.seq) {
			continue
		}

		start := time.Now()
		if err := item.Instance.Start(ctx); err != nil {
			m.logger.Error("component failed to start",
				clog.String("component", item.Name), clog.Int("phase", item.Instance.Phase()), clog.Error(err))
			return &Error{Phase: item.Instance.Phase(), Name: item.Name, Cause: err}
		}
		m.started = append(m.started, item)
		m.logger.Info("component started",
			clog.String("component", item.Name), clog.Int("phase", item.Instance.Phase()),
			clog.Duration("duration", time.Since(start)))
	}
	return nil
}

// StopAll 按启动的逆序停止已启动的对象，停止失败不会中断后续对象，错误合并返回
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs xerrors.Collector
	for i := len(m.started) - 1; i >= 0; i-- {
		item := m.started[i]
		if err := item.Instance.Stop(ctx); err != nil {
			m.logger.Warn("component failed to stop", clog.String("component", item.Name), clog.Error(err))
			errs.Collect(&Error{Phase: item.Instance.Phase(), Name: item.Name, Cause: err})
			continue
		}
		m.logger.Info("component stopped", clog.String("component", item.Name))
	}
	m.started = nil
	return errs.Err()
}

// Items 返回已注册对象的副本
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, len(m.items))
	for i, e := range m.items {
		out[i] = e.Item
	}
	return out
}

func (m *Manager) isStarted(seq int) bool {
	for _, e := range m.started {
		if e.seq == seq {
			return true
		}
	}
	return false
}

// Error 生命周期错误，携带失败组件的阶段与名称
type Error struct {
	Phase int
	Name  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lifecycle error in phase %d [%s]: %v", e.Phase, e.Name, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
