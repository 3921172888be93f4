// Package registrar 在进程生命周期内把本实例注册到服务发现中心，并在退出时注销。
//
// 注册是尽力而为的：注册中心不可达不会阻止进程启动，失败只记录日志（ErrRegistryCommunication）。
// 状态单向迁移 Unregistered -> Registered -> Deregistered，重复 Deregister 是空操作。
// 没有后台续约与健康检查，每个进程只注册一次、注销一次。
//
//	r, _ := registrar.New(reg, registrar.Endpoint{
//	    ServiceName: "task-service", ServiceAddress: "10.0.0.5", ServicePort: 8080,
//	}, registrar.WithLogger(logger))
//	r.Register(ctx)
//	defer r.Deregister(shutdownCtx)
package registrar

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/lifecycle"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/registry"
	"github.com/ceyewan/warden/xerrors"
)

// MetricOperations 注册操作计数，标签: operation, status
const MetricOperations = "registrar_operations_total"

const (
	opRegister   = "register"
	opDeregister = "deregister"
)

// Registrar 管理单个实例的注册状态，方法并发安全
type Registrar struct {
	reg               registry.Registry
	endpoint          Endpoint
	ids               IDSource
	registerTimeout   time.Duration
	deregisterTimeout time.Duration
	logger            clog.Logger
	ops               metrics.Counter

	mu      sync.Mutex
	handle  Handle
	lastErr error
	// uncertain 注册请求超时或被取消，注册中心可能已经写入
	uncertain bool
}

var _ lifecycle.Lifecycle = (*Registrar)(nil)

// New 创建 Registrar，endpoint 会被复制
func New(reg registry.Registry, endpoint Endpoint, opts ...Option) (*Registrar, error) {
	if reg == nil {
		return nil, xerrors.Wrap(ErrInvalidEndpoint, "registry is required")
	}
	if err := endpoint.validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger:            clog.Discard(),
		meter:             metrics.Discard(),
		ids:               UUIDSource{},
		registerTimeout:   DefaultRegisterTimeout,
		deregisterTimeout: DefaultDeregisterTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	ops, err := o.meter.Counter(MetricOperations, "Service registration operations by result.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create registrar operations counter")
	}

	return &Registrar{
		reg:               reg,
		endpoint:          endpoint.clone(),
		ids:               o.ids,
		registerTimeout:   o.registerTimeout,
		deregisterTimeout: o.deregisterTimeout,
		logger: o.logger.With(
			clog.String("service_name", endpoint.ServiceName),
			clog.String("registry_address", endpoint.Address),
		),
		ops: ops,
	}, nil
}

// Register 生成实例标识并提交给注册中心。
//
// 仅在 Unregistered 状态下生效；失败时记录日志并保持 Unregistered，错误不向上返回，
// 可通过 LastError 查看。失败后句柄仍保留生成的标识。其他状态下直接返回当前句柄。
// 请求受 ctx 约束，ctx 没有截止时间时使用 WithRegisterTimeout 设置的超时。
func (r *Registrar) Register(ctx context.Context) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle.State != StateUnregistered {
		return r.handle
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.registerTimeout)
		defer cancel()
	}

	id := r.ids.NewID(r.endpoint.ServiceName)
	logger := r.logger.With(clog.String("registration_id", string(id)))
	logger.InfoContext(ctx, "registering with service registry",
		clog.String("service_address", r.endpoint.ServiceAddress),
		clog.Int("service_port", r.endpoint.ServicePort),
		clog.Strings("tags", r.endpoint.Tags))

	err := r.reg.Register(ctx, &registry.ServiceInstance{
		ID:      string(id),
		Name:    r.endpoint.ServiceName,
		Address: r.endpoint.ServiceAddress,
		Port:    r.endpoint.ServicePort,
		Tags:    append([]string(nil), r.endpoint.Tags...),
	})
	r.record(ctx, opRegister, err)
	if err != nil {
		r.lastErr = xerrors.Mark(err, ErrRegistryCommunication)
		r.handle.ID = id
		r.uncertain = xerrors.Is(err, context.DeadlineExceeded) || xerrors.Is(err, context.Canceled)
		if r.uncertain {
			logger.ErrorContext(ctx, "registration abandoned, registry entry may exist", clog.Error(r.lastErr))
		} else {
			logger.ErrorContext(ctx, "error registering with service registry", clog.Error(r.lastErr))
		}
		return r.handle
	}

	r.lastErr = nil
	r.uncertain = false
	r.handle = Handle{ID: id, State: StateRegistered}
	logger.InfoContext(ctx, "registered with service registry")
	return r.handle
}

// Deregister 从注册中心移除本实例。
//
// 在 Registered 状态下，或上一次注册因超时/取消而结果未知时发起请求；
// 无论成败状态都变为 Deregistered，失败只记录日志。其他情况是空操作。
// 请求受 ctx 约束，ctx 没有截止时间时使用 WithDeregisterTimeout 设置的超时；
// ctx 取消即放弃，不重试。
func (r *Registrar) Deregister(ctx context.Context) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleanup := r.handle.State == StateUnregistered && r.uncertain
	if r.handle.State != StateRegistered && !cleanup {
		return r.handle
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deregisterTimeout)
		defer cancel()
	}

	logger := r.logger.With(clog.String("registration_id", string(r.handle.ID)))
	logger.InfoContext(ctx, "deregistering from service registry", clog.Bool("after_uncertain_register", cleanup))

	err := r.reg.Deregister(ctx, string(r.handle.ID))
	r.record(ctx, opDeregister, err)
	r.handle.State = StateDeregistered
	r.uncertain = false

	switch {
	case err == nil:
		r.lastErr = nil
		logger.InfoContext(ctx, "deregistered from service registry")
	case xerrors.Is(err, context.Canceled), xerrors.Is(err, context.DeadlineExceeded):
		r.lastErr = xerrors.Mark(err, ErrRegistryCommunication)
		logger.ErrorContext(ctx, "deregistration abandoned, registry entry may be stale", clog.Error(r.lastErr))
	default:
		r.lastErr = xerrors.Mark(err, ErrRegistryCommunication)
		logger.ErrorContext(ctx, "error deregistering from service registry", clog.Error(r.lastErr))
	}
	return r.handle
}

// Handle 返回当前句柄快照
func (r *Registrar) Handle() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// LastError 返回最近一次被吞掉的通信错误，成功后清空
func (r *Registrar) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Endpoint 返回注册目标的副本
func (r *Registrar) Endpoint() Endpoint {
	return r.endpoint.clone()
}

// Start 实现 lifecycle.Lifecycle，注册失败不会中止启动
func (r *Registrar) Start(ctx context.Context) error {
	r.Register(ctx)
	return nil
}

// Stop 实现 lifecycle.Lifecycle
func (r *Registrar) Stop(ctx context.Context) error {
	r.Deregister(ctx)
	return nil
}

// Phase 在 HTTP 服务器之后启动，之前停止
func (r *Registrar) Phase() int {
	return lifecycle.PhaseRegistration
}

func (r *Registrar) record(ctx context.Context, op string, err error) {
	status := metrics.OutcomeSuccess
	if err != nil {
		status = metrics.OutcomeError
	}
	r.ops.Inc(ctx, metrics.L(metrics.LabelOperation, op), metrics.L(metrics.LabelStatus, status))
}
