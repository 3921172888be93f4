package bootstrap

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/config"
	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/pipeline"
	"github.com/ceyewan/warden/registrar"
	"github.com/ceyewan/warden/registry"
	"github.com/ceyewan/warden/trace"
	"github.com/ceyewan/warden/xerrors"
)

// KV 配置中心驱动
const (
	KVDriverEtcd   = "etcd"
	KVDriverConsul = "consul"
	KVDriverRedis  = "redis"
	KVDriverMemory = "memory"
)

// DefaultShutdownTimeout 优雅关闭的默认超时
const DefaultShutdownTimeout = 10 * time.Second

// Config 进程配置根，由 config.Loader 加载
//
//	app:
//	  name: tasks
//	server:
//	  addr: ":8080"
//	  shutdown_timeout: 10s
//	connectors:
//	  consul:
//	    address: "127.0.0.1:8500"
//	registry:
//	  driver: consul
//	kvconfig:
//	  driver: consul
//	  key: "warden/auth"
//	registrar:
//	  service_name: tasks
//	  service_port: 8080
type Config struct {
	App        AppConfig          `mapstructure:"app"`
	Server     ServerConfig       `mapstructure:"server"`
	Log        clog.Config        `mapstructure:"log"`
	Metrics    metrics.Config     `mapstructure:"metrics"`
	Trace      trace.Config       `mapstructure:"trace"`
	Connectors ConnectorsConfig   `mapstructure:"connectors"`
	Registry   registry.Config    `mapstructure:"registry"`
	KVConfig   KVConfig           `mapstructure:"kvconfig"`
	Registrar  registrar.Endpoint `mapstructure:"registrar"`
}

// AppConfig 应用标识
type AppConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Version string `mapstructure:"version"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// AuthPrefix 受保护路由组前缀，默认 /api
	AuthPrefix string `mapstructure:"auth_prefix"`
}

// ConnectorsConfig 外部连接，按需配置
type ConnectorsConfig struct {
	Etcd   *connector.EtcdConfig   `mapstructure:"etcd"`
	Consul *connector.ConsulConfig `mapstructure:"consul"`
	Redis  *connector.RedisConfig  `mapstructure:"redis"`
}

// KVConfig 启动时读取认证配置的 KV 存储
type KVConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=etcd consul redis memory"`
	Key    string `mapstructure:"key" validate:"required"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json yaml yml msgpack"`
	// Seed memory 驱动的初始内容，key -> 文档
	Seed map[string]string `mapstructure:"seed"`
}

// LoadConfig 通过 config.Loader 加载、填充默认值并校验配置
func LoadConfig(ctx context.Context, cfg *config.Config, opts ...config.Option) (*Config, error) {
	loader, err := config.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}

	var c Config
	if err := loader.Unmarshal(&c); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 填充默认值并校验字段与驱动依赖
func (c *Config) Validate() error {
	c.setDefaults()
	if err := config.ValidateStruct(c); err != nil {
		return err
	}

	var col xerrors.Collector
	switch c.Registry.Driver {
	case registry.DriverEtcd, registry.DriverConsul, registry.DriverMemory:
	default:
		col.Collect(xerrors.Wrapf(config.ErrValidationFailed, "registry.driver: unknown driver %q", c.Registry.Driver))
	}
	col.Collect(c.requireConnector("registry.driver", c.Registry.Driver))
	col.Collect(c.requireConnector("kvconfig.driver", c.KVConfig.Driver))
	return col.Err()
}

func (c *Config) setDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.AuthPrefix == "" {
		c.Server.AuthPrefix = pipeline.DefaultAuthPrefix
	}
	if c.Registry.Driver == "" {
		c.Registry.Driver = registry.DriverMemory
	}
	c.KVConfig.Driver = strings.ToLower(strings.TrimSpace(c.KVConfig.Driver))
	c.KVConfig.Format = strings.ToLower(strings.TrimSpace(c.KVConfig.Format))

	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.App.Name
	}
	if c.Metrics.Version == "" {
		c.Metrics.Version = c.App.Version
	}
	if c.Trace.ServiceName == "" {
		c.Trace.ServiceName = c.App.Name
	}

	if c.Registrar.ServiceName == "" {
		c.Registrar.ServiceName = c.App.Name
	}
	if c.Registrar.ServicePort == 0 {
		c.Registrar.ServicePort = portOf(c.Server.Addr)
	}
	if c.Registrar.Address == "" {
		c.Registrar.Address = c.registryAddress()
	}
}

func (c *Config) requireConnector(field, driver string) error {
	var missing bool
	switch driver {
	case KVDriverEtcd:
		missing = c.Connectors.Etcd == nil
	case KVDriverConsul:
		missing = c.Connectors.Consul == nil
	case KVDriverRedis:
		missing = c.Connectors.Redis == nil
	}
	if missing {
		return xerrors.Wrapf(config.ErrValidationFailed, "%s: %s requires connectors.%s", field, driver, driver)
	}
	return nil
}

func (c *Config) registryAddress() string {
	switch c.Registry.Driver {
	case registry.DriverEtcd:
		if c.Connectors.Etcd != nil {
			return strings.Join(c.Connectors.Etcd.Endpoints, ",")
		}
	case registry.DriverConsul:
		if c.Connectors.Consul != nil {
			return c.Connectors.Consul.Address
		}
	}
	return ""
}

// portOf 从 host:port 中解析端口，失败时为 0
func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return port
}
