package registrar

import (
	"strings"

	"github.com/ceyewan/warden/xerrors"
)

// RegistrationID 注册中心中的实例标识，对调用方不透明
type RegistrationID string

// State 注册状态，只能 Unregistered -> Registered -> Deregistered 单向迁移
type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateDeregistered
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateDeregistered:
		return "deregistered"
	default:
		return "unknown"
	}
}

// Handle 注册句柄的只读快照
type Handle struct {
	ID    RegistrationID
	State State
}

// Endpoint 注册目标与本实例的对外地址，New 时复制，之后不可变
type Endpoint struct {
	// Address 注册中心地址，仅用于日志；实际连接由 connector 建立
	Address        string   `mapstructure:"address"`
	ServiceName    string   `mapstructure:"service_name" validate:"required"`
	ServiceAddress string   `mapstructure:"service_address"`
	ServicePort    int      `mapstructure:"service_port" validate:"gte=0,lte=65535"`
	Tags           []string `mapstructure:"tags"`
}

func (e Endpoint) clone() Endpoint {
	e.Tags = append([]string(nil), e.Tags...)
	return e
}

func (e Endpoint) validate() error {
	var c xerrors.Collector
	c.Collectf(strings.TrimSpace(e.ServiceName) == "", ErrInvalidEndpoint, "service name is required")
	c.Collectf(e.ServicePort < 0 || e.ServicePort > 65535, ErrInvalidEndpoint,
		"service port %d out of range", e.ServicePort)
	return c.Err()
}
