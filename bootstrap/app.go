// Package bootstrap 把 warden 的各组件组装为一个可运行的服务进程。
//
// 启动顺序：日志/指标/追踪 → 连接器 → 从 KV 存储读取认证配置 → 构建认证策略 →
// 安装请求管线 → HTTP 监听 → 服务注册。读取配置或构建策略失败时 New 直接返回错误，
// 不会监听端口也不会注册。停止顺序与启动相反：先注销，再关闭 HTTP 服务器，最后释放连接。
//
//	app, err := bootstrap.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	app.API().POST("/tasks", pipeline.Handle(app.Pipeline(), createTask))
//	return app.Run(ctx)
package bootstrap

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/warden/auth"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/kvconfig"
	"github.com/ceyewan/warden/lifecycle"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/pipeline"
	"github.com/ceyewan/warden/registrar"
	"github.com/ceyewan/warden/registry"
	"github.com/ceyewan/warden/trace"
	"github.com/ceyewan/warden/xerrors"
)

// ErrConfigRequired 未提供配置
var ErrConfigRequired = xerrors.New("bootstrap: config is required")

// App 服务进程
type App struct {
	cfg           *Config
	logger        clog.Logger
	meter         metrics.Meter
	ownsMeter     bool
	traceShutdown func(context.Context) error

	lc        *lifecycle.Manager
	conns     *connectors
	policy    *auth.Policy
	pipeline  *pipeline.Pipeline
	engine    *gin.Engine
	api       *gin.RouterGroup
	server    *httpServer
	registrar *registrar.Registrar

	stopOnce sync.Once
	stopErr  error
}

// New 完成启动前的全部准备工作：连接外部依赖、读取认证配置并构建策略、安装管线。
//
// 返回的 App 尚未监听端口，调用方在 API() 上注册路由后调用 Run。
func New(ctx context.Context, cfg *Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.release(context.WithoutCancel(ctx))
		}
	}()

	if err = a.initObservability(o); err != nil {
		return nil, err
	}
	if err = a.initConnectors(ctx); err != nil {
		return nil, err
	}
	if err = a.initPolicy(ctx, o); err != nil {
		return nil, err
	}
	if err = a.initServer(o); err != nil {
		return nil, err
	}
	if err = a.initRegistrar(o); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) initObservability(o *options) error {
	logger := o.logger
	if logger == nil {
		l, err := clog.New(&a.cfg.Log,
			clog.WithNamespace(a.cfg.App.Name),
			clog.WithStandardContext(),
			clog.WithTraceContext(),
		)
		if err != nil {
			return xerrors.Wrap(err, "create logger")
		}
		logger = l
	}
	a.logger = logger

	meter := o.meter
	if meter == nil {
		m, err := metrics.New(&a.cfg.Metrics, metrics.WithLogger(logger))
		if err != nil {
			return xerrors.Wrap(err, "create meter")
		}
		meter = m
		a.ownsMeter = true
	}
	a.meter = meter

	shutdown, err := trace.Init(&a.cfg.Trace)
	if err != nil {
		return xerrors.Wrap(err, "init tracing")
	}
	a.traceShutdown = shutdown

	a.lc = lifecycle.NewManager(lifecycle.WithLogger(logger))
	return nil
}

// initConnectors 创建并连接所有已配置的连接器。
//
// 只有 KV 驱动使用的连接器连接失败会中止启动；其余连接器（如仅供注册中心使用）
// 连接失败只记录日志，由 registrar 在注册时按通信错误处理。
func (a *App) initConnectors(ctx context.Context) error {
	conns, err := newConnectors(a.cfg.Connectors, connector.WithLogger(a.logger), connector.WithMeter(a.meter))
	if err != nil {
		return err
	}
	a.conns = conns

	for _, dc := range conns.byDriver() {
		conn := dc.conn
		start := conn.Connect
		if dc.driver != a.cfg.KVConfig.Driver {
			start = a.connectBestEffort(conn)
		}
		a.lc.Register(conn.Name(), lifecycle.Hook{
			StartPhase: lifecycle.PhaseConnector,
			OnStart:    start,
			OnStop:     func(context.Context) error { return conn.Close() },
		})
	}
	return a.lc.StartAll(ctx)
}

func (a *App) connectBestEffort(conn connector.Connector) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := conn.Connect(ctx); err != nil {
			a.logger.WarnContext(ctx, "connector unavailable, continuing without it",
				clog.String("connector", conn.Name()), clog.Error(err))
		}
		return nil
	}
}

// initPolicy 读取认证配置并构建验证策略。两步都不重试，失败即终止启动。
func (a *App) initPolicy(ctx context.Context, o *options) error {
	store := o.store
	if store == nil {
		s, err := newStore(a.cfg.KVConfig, a.conns)
		if err != nil {
			return err
		}
		store = s
	}

	loader, err := kvconfig.New(store,
		kvconfig.WithLogger(a.logger),
		kvconfig.WithMeter(a.meter),
		kvconfig.WithFormat(a.cfg.KVConfig.Format),
	)
	if err != nil {
		return err
	}

	settings, err := auth.FetchSettings(ctx, loader, a.cfg.KVConfig.Key)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch auth settings", clog.Error(err),
			clog.String("key", a.cfg.KVConfig.Key), clog.String("store", store.Name()))
		return err
	}

	policy, err := auth.Build(settings, auth.WithLogger(a.logger), auth.WithMeter(a.meter))
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to build auth policy", clog.Error(err))
		return err
	}
	a.policy = policy
	return nil
}

func (a *App) initServer(o *options) error {
	pipeOpts := append([]pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithMeter(a.meter),
		pipeline.WithServiceName(a.cfg.App.Name),
		pipeline.WithTracing(a.cfg.Trace.Enabled),
		pipeline.WithAuthPrefix(a.cfg.Server.AuthPrefix),
	}, o.pipelineOpts...)

	p, err := pipeline.New(a.policy, pipeOpts...)
	if err != nil {
		return err
	}
	a.pipeline = p

	a.engine = gin.New()
	a.api = p.Install(a.engine)
	a.engine.GET("/healthz", a.health)
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Port == 0 {
		a.engine.GET(a.cfg.Metrics.Path, gin.WrapH(a.meter.Handler()))
	}

	a.server = newHTTPServer(a.cfg.Server, a.engine, a.logger.WithNamespace("http"))
	a.lc.Register("http", a.server)
	return nil
}

func (a *App) initRegistrar(o *options) error {
	reg := o.registry
	if reg == nil {
		r, err := newRegistry(a.cfg.Registry, a.conns, registry.WithLogger(a.logger))
		if err != nil {
			return err
		}
		reg = r
	}
	a.lc.Register("registry", lifecycle.Hook{
		StartPhase: lifecycle.PhaseConnector,
		OnStop:     func(context.Context) error { return reg.Close() },
	})

	regOpts := []registrar.Option{registrar.WithLogger(a.logger), registrar.WithMeter(a.meter)}
	if o.ids != nil {
		regOpts = append(regOpts, registrar.WithIDSource(o.ids))
	}
	r, err := registrar.New(reg, a.cfg.Registrar, regOpts...)
	if err != nil {
		return err
	}
	a.registrar = r
	a.lc.Register("registrar", r)
	return nil
}

// Start 启动 HTTP 服务器并注册服务。注册失败只记录日志，不影响启动。
func (a *App) Start(ctx context.Context) error {
	if err := a.lc.StartAll(ctx); err != nil {
		return err
	}
	h := a.registrar.Handle()
	a.logger.InfoContext(ctx, "service started",
		clog.String("addr", a.Addr().String()),
		clog.String("registration_id", string(h.ID)),
		clog.String("registration_state", h.State.String()))
	return nil
}

// Run 启动服务并阻塞，直到 ctx 取消、收到 SIGINT/SIGTERM 或 HTTP 服务器异常退出，
// 随后在 Server.ShutdownTimeout 内完成优雅关闭。
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return xerrors.Combine(err, a.Stop(stopCtx))
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-sigCtx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-a.server.Err():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return xerrors.Combine(runErr, a.Stop(stopCtx))
}

// Stop 注销服务、关闭 HTTP 服务器并释放所有资源，只执行一次
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		start := time.Now()
		a.stopErr = a.release(ctx)
		a.logger.Info("service stopped", clog.Duration("elapsed", time.Since(start)))
		a.logger.Flush()
	})
	return a.stopErr
}

func (a *App) release(ctx context.Context) error {
	var errs []error
	if a.lc != nil {
		errs = append(errs, a.lc.StopAll(ctx))
	}
	if a.traceShutdown != nil {
		errs = append(errs, a.traceShutdown(ctx))
	}
	if a.ownsMeter {
		errs = append(errs, a.meter.Shutdown(ctx))
	}
	return xerrors.Combine(errs...)
}

// Engine 返回 gin 引擎，可注册不需要认证的路由
func (a *App) Engine() *gin.Engine { return a.engine }

// API 返回受认证保护的路由组
func (a *App) API() *gin.RouterGroup { return a.api }

func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

func (a *App) Policy() *auth.Policy { return a.policy }

func (a *App) Registrar() *registrar.Registrar { return a.registrar }

func (a *App) Logger() clog.Logger { return a.logger }

func (a *App) Meter() metrics.Meter { return a.meter }

func (a *App) Config() *Config { return a.cfg }

// Addr 返回 HTTP 服务器实际监听的地址，Start 之前返回配置的地址
func (a *App) Addr() net.Addr {
	if addr := a.server.Addr(); addr != nil {
		return addr
	}
	addr, err := net.ResolveTCPAddr("tcp", a.cfg.Server.Addr)
	if err != nil {
		return &net.TCPAddr{}
	}
	return addr
}
