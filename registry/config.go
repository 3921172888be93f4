package registry

import (
	"strings"

	"github.com/ceyewan/warden/xerrors"
)

// 支持的驱动
const (
	DriverEtcd   = "etcd"
	DriverConsul = "consul"
	DriverMemory = "memory"
)

// DefaultNamespace etcd 驱动的默认 key 前缀
const DefaultNamespace = "/warden/services"

// Config Registry 组件配置
type Config struct {
	// Driver 注册中心类型: etcd | consul | memory
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	// Namespace etcd key 前缀，默认 "/warden/services"
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace"`
}

func (c *Config) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	c.Namespace = "/" + strings.Trim(c.Namespace, "/")
}

func (c *Config) validate() error {
	switch c.Driver {
	case "", DriverEtcd, DriverConsul, DriverMemory:
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unknown driver %q", c.Driver)
	}
	if c.Namespace == "/" {
		return xerrors.Wrap(ErrInvalidConfig, "namespace must not be root")
	}
	return nil
}
