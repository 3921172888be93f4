package bootstrap

import (
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/kvconfig"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/pipeline"
	"github.com/ceyewan/warden/registrar"
	"github.com/ceyewan/warden/registry"
)

// Option App 选项
type Option func(*options)

type options struct {
	logger       clog.Logger
	meter        metrics.Meter
	store        kvconfig.Store
	registry     registry.Registry
	ids          registrar.IDSource
	pipelineOpts []pipeline.Option
}

// WithLogger 使用外部 Logger，忽略 Config.Log
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMeter 使用外部 Meter，忽略 Config.Metrics
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithStore 使用指定的 KV 存储，忽略 kvconfig.driver
func WithStore(store kvconfig.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRegistry 使用指定的注册中心，忽略 registry.driver。App 停止时会调用其 Close。
func WithRegistry(reg registry.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithIDSource 设置注册实例 ID 的生成方式
func WithIDSource(ids registrar.IDSource) Option {
	return func(o *options) {
		o.ids = ids
	}
}

// WithPipelineOptions 追加管线选项，如自定义 Behavior
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}
