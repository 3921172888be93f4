package connector

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

const etcdProbeKey = "warden/connector/probe"

type etcdConnector struct {
	*base
	cfg    *EtcdConfig
	client *clientv3.Client
	zlog   *zap.Logger
}

// NewEtcd 创建 etcd 连接器。客户端懒连接，Connect 时才探测。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is required")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	b, err := newBase("etcd", cfg.Name, o)
	if err != nil {
		return nil, xerrors.Wrap(err, "create etcd connector metrics")
	}

	zlog, err := newEtcdClientLogger(cfg.ClientLogLevel)
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "etcd client_log_level"), ErrConfig)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:            cfg.Endpoints,
		Username:             cfg.Username,
		Password:             cfg.Password,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
		Logger:               zlog,
	})
	if err != nil {
		_ = zlog.Sync()
		return nil, xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", cfg.Name), ErrConnection)
	}

	return &etcdConnector{base: b, cfg: cfg, client: client, zlog: zlog}, nil
}

// newEtcdClientLogger etcd 客户端要求 zap.Logger，默认只输出 error 以上
func newEtcdClientLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.Sampling = nil
	return zcfg.Build(zap.Fields(zap.String("component", "etcd-client")))
}

func (c *etcdConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	c.logger.Info("attempting to connect to etcd", clog.Strings("endpoints", c.cfg.Endpoints))

	err := c.probe(ctx)
	c.markConnect(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.name), ErrConnection)
	}

	c.logger.Info("connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

func (c *etcdConnector) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := c.client.Get(probeCtx, etcdProbeKey, clientv3.WithCountOnly())
	return err
}

func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := c.probe(ctx); err != nil {
		c.markHealth(ctx, false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.name), ErrHealthCheck)
	}
	c.markHealth(ctx, true)
	return nil
}

func (c *etcdConnector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.markHealth(context.Background(), false)
	c.logger.Info("closing etcd connection")

	err := c.client.Close()
	_ = c.zlog.Sync()
	if err != nil && !xerrors.Is(err, context.Canceled) {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	return nil
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	return c.client
}
