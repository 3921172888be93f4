package pipeline

import (
	"github.com/go-playground/validator/v10"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// Option 管线选项
type Option func(*options)

type options struct {
	logger      clog.Logger
	meter       metrics.Meter
	validate    *validator.Validate
	behaviors   []Behavior
	serviceName string
	authPrefix  string
	tracing     bool
}

func defaultOptions() *options {
	return &options{
		logger:     clog.Discard(),
		meter:      metrics.Discard(),
		authPrefix: DefaultAuthPrefix,
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter 设置指标收集器，用于 HTTP RED 指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithServiceName 设置服务名，作为指标标签与追踪的服务名
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// WithTracing 开启 otelgin 链路追踪中间件
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracing = enabled
	}
}

// WithAuthPrefix 设置受保护路由组前缀，默认 /api
func WithAuthPrefix(prefix string) Option {
	return func(o *options) {
		o.authPrefix = prefix
	}
}

// WithValidator 使用自定义校验器，默认为 NewValidator()
func WithValidator(v *validator.Validate) Option {
	return func(o *options) {
		o.validate = v
	}
}

// WithBehaviors 替换默认的 Behavior 链（Logging → Validation）。
// 传入空列表表示不使用任何 Behavior。
func WithBehaviors(behaviors ...Behavior) Option {
	return func(o *options) {
		o.behaviors = append([]Behavior{}, behaviors...)
	}
}
