package kvconfig

import (
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	format string
}

// Option Loader 选项
type Option func(*options)

// WithLogger 设置日志记录器，自动追加 "kvconfig" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("kvconfig")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithFormat 设置配置格式："json"（默认）、"yaml" 或 "msgpack"
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}
