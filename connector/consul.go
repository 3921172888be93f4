package connector

import (
	"context"
	"net/http"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

type consulConnector struct {
	*base
	cfg       *ConsulConfig
	client    *consulapi.Client
	transport *http.Transport
}

// NewConsul 创建 Consul 连接器。Consul 客户端基于 HTTP，没有常驻连接。
func NewConsul(cfg *ConsulConfig, opts ...Option) (ConsulConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "consul config is required")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	b, err := newBase("consul", cfg.Name, o)
	if err != nil {
		return nil, xerrors.Wrap(err, "create consul connector metrics")
	}

	apiCfg := consulapi.DefaultConfig()
	apiCfg.Address = cfg.Address
	if cfg.Scheme != "" {
		apiCfg.Scheme = cfg.Scheme
	}
	apiCfg.Token = cfg.Token
	apiCfg.Datacenter = cfg.Datacenter

	httpClient, err := consulapi.NewHttpClient(apiCfg.Transport, apiCfg.TLSConfig)
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrapf(err, "consul connector[%s]", cfg.Name), ErrConfig)
	}
	httpClient.Timeout = cfg.Timeout
	apiCfg.HttpClient = httpClient

	client, err := consulapi.NewClient(apiCfg)
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrapf(err, "consul connector[%s]", cfg.Name), ErrConfig)
	}

	return &consulConnector{base: b, cfg: cfg, client: client, transport: apiCfg.Transport}, nil
}

// probe 查询 raft leader，能返回即说明 agent 与 server 均可达
func (c *consulConnector) probe(ctx context.Context) error {
	leader, err := c.client.Status().LeaderWithQueryOptions((&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return err
	}
	if leader == "" {
		return xerrors.New("consul cluster has no leader")
	}
	return nil
}

func (c *consulConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	c.logger.Info("attempting to connect to consul", clog.String("address", c.cfg.Address))

	err := c.probe(ctx)
	c.markConnect(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to consul", clog.String("address", c.cfg.Address), clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "consul connector[%s]", c.name), ErrConnection)
	}

	c.logger.Info("connected to consul", clog.String("address", c.cfg.Address))
	return nil
}

func (c *consulConnector) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := c.probe(ctx); err != nil {
		c.markHealth(ctx, false)
		c.logger.Warn("consul health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "consul connector[%s]", c.name), ErrHealthCheck)
	}
	c.markHealth(ctx, true)
	return nil
}

func (c *consulConnector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.markHealth(context.Background(), false)
	c.logger.Info("closing consul client")
	c.transport.CloseIdleConnections()
	return nil
}

func (c *consulConnector) GetClient() *consulapi.Client {
	return c.client
}
