package bootstrap

import (
	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/kvconfig"
	"github.com/ceyewan/warden/registry"
	"github.com/ceyewan/warden/xerrors"
)

// connectors 已创建的连接器，未配置的为 nil
type connectors struct {
	etcd   connector.EtcdConnector
	consul connector.ConsulConnector
	redis  connector.RedisConnector
}

// driverConn 连接器及其对应的驱动名
type driverConn struct {
	driver string
	conn   connector.Connector
}

func (c *connectors) byDriver() []driverConn {
	var out []driverConn
	if c.etcd != nil {
		out = append(out, driverConn{driver: KVDriverEtcd, conn: c.etcd})
	}
	if c.consul != nil {
		out = append(out, driverConn{driver: KVDriverConsul, conn: c.consul})
	}
	if c.redis != nil {
		out = append(out, driverConn{driver: KVDriverRedis, conn: c.redis})
	}
	return out
}

func (c *connectors) all() []connector.Connector {
	var out []connector.Connector
	for _, dc := range c.byDriver() {
		out = append(out, dc.conn)
	}
	return out
}

func newConnectors(cfg ConnectorsConfig, opts ...connector.Option) (*connectors, error) {
	var (
		c   connectors
		err error
	)
	if cfg.Etcd != nil {
		if c.etcd, err = connector.NewEtcd(cfg.Etcd, opts...); err != nil {
			return nil, err
		}
	}
	if cfg.Consul != nil {
		if c.consul, err = connector.NewConsul(cfg.Consul, opts...); err != nil {
			c.close()
			return nil, err
		}
	}
	if cfg.Redis != nil {
		if c.redis, err = connector.NewRedis(cfg.Redis, opts...); err != nil {
			c.close()
			return nil, err
		}
	}
	return &c, nil
}

func (c *connectors) close() {
	for _, conn := range c.all() {
		_ = conn.Close()
	}
}

// newStore 按驱动创建 KV 存储
func newStore(cfg KVConfig, conns *connectors) (kvconfig.Store, error) {
	switch cfg.Driver {
	case KVDriverEtcd:
		return kvconfig.NewEtcdStore(conns.etcd)
	case KVDriverConsul:
		return kvconfig.NewConsulStore(conns.consul)
	case KVDriverRedis:
		return kvconfig.NewRedisStore(conns.redis)
	case KVDriverMemory:
		seed := make(map[string][]byte, len(cfg.Seed))
		for k, v := range cfg.Seed {
			seed[k] = []byte(v)
		}
		return kvconfig.NewMemoryStore(seed), nil
	default:
		return nil, xerrors.Wrapf(kvconfig.ErrInvalidArgument, "unknown kvconfig driver %q", cfg.Driver)
	}
}

// newRegistry 按驱动创建注册中心客户端
func newRegistry(cfg registry.Config, conns *connectors, opts ...registry.Option) (registry.Registry, error) {
	switch cfg.Driver {
	case registry.DriverEtcd:
		return registry.NewEtcd(conns.etcd, &cfg, opts...)
	case registry.DriverConsul:
		return registry.NewConsul(conns.consul, opts...)
	case registry.DriverMemory:
		return registry.NewMemory(), nil
	default:
		return nil, xerrors.Wrapf(registry.ErrInvalidConfig, "unknown registry driver %q", cfg.Driver)
	}
}
