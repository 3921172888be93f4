package connector

import (
	"strings"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

// EtcdConfig etcd 连接配置
type EtcdConfig struct {
	Name      string   `mapstructure:"name"`      // 连接器名称，默认 "etcd"
	Endpoints []string `mapstructure:"endpoints"` // [必填] 如 ["127.0.0.1:2379"]
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`

	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // 默认 5s，也用作 Connect 探测超时
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // 默认 10s
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // 默认 3s

	// ClientLogLevel etcd 客户端内部日志级别（zap），默认 "error"
	ClientLogLevel string `mapstructure:"client_log_level"`
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "etcd"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime <= 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
	if c.ClientLogLevel == "" {
		c.ClientLogLevel = "error"
	}
}

func (c *EtcdConfig) validate() error {
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd endpoints are required")
	}
	for _, ep := range c.Endpoints {
		if strings.TrimSpace(ep) == "" {
			return xerrors.Wrap(ErrConfig, "etcd endpoint must not be empty")
		}
	}
	return nil
}

// ConsulConfig Consul agent 连接配置
type ConsulConfig struct {
	Name       string        `mapstructure:"name"`    // 连接器名称，默认 "consul"
	Address    string        `mapstructure:"address"` // [必填] 如 "127.0.0.1:8500" 或 "http://consul:8500"
	Scheme     string        `mapstructure:"scheme"`  // http|https，Address 带 scheme 时可省略
	Token      string        `mapstructure:"token"`   // ACL token
	Datacenter string        `mapstructure:"datacenter"`
	Timeout    time.Duration `mapstructure:"timeout"` // HTTP 请求超时，默认 5s
}

func (c *ConsulConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "consul"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c *ConsulConfig) validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return xerrors.Wrap(ErrConfig, "consul address is required")
	}
	if c.Scheme != "" && c.Scheme != "http" && c.Scheme != "https" {
		return xerrors.Wrapf(ErrConfig, "consul scheme must be http or https, got %q", c.Scheme)
	}
	return nil
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name     string `mapstructure:"name"` // 连接器名称，默认 "redis"
	Addr     string `mapstructure:"addr"` // [必填] 如 "127.0.0.1:6379"
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`     // 默认 10
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`  // 默认 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 默认 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 默认 3s

	// EnableTracing 为命令创建 OTel span
	EnableTracing bool `mapstructure:"enable_tracing"`
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "redis"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is required")
	}
	if c.DB < 0 {
		return xerrors.Wrapf(ErrConfig, "redis db must be >= 0, got %d", c.DB)
	}
	return nil
}
