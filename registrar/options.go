package registrar

import (
	"time"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// ctx 没有截止时间时 Register / Deregister 的默认超时
const (
	DefaultRegisterTimeout   = 5 * time.Second
	DefaultDeregisterTimeout = 5 * time.Second
)

// Option 选项
type Option func(*options)

type options struct {
	logger            clog.Logger
	meter             metrics.Meter
	ids               IDSource
	registerTimeout   time.Duration
	deregisterTimeout time.Duration
}

// WithLogger 设置日志记录器，自动追加 "registrar" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("registrar")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithIDSource 替换实例标识源，默认 UUIDSource
func WithIDSource(ids IDSource) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithDeregisterTimeout 设置 ctx 无截止时间时 Deregister 的超时，<=0 时忽略
func WithDeregisterTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deregisterTimeout = d
		}
	}
}

// WithRegisterTimeout 设置 ctx 无截止时间时 Register 的超时，<=0 时忽略
func WithRegisterTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.registerTimeout = d
		}
	}
}
