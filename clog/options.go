package clog

import "io"

// ContextField 定义从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 函数式选项，用于配置 Logger 实例
type Option func(*options)

type options struct {
	namespaceParts        []string
	contextFields         []ContextField
	writer                io.Writer
	enableTraceExtraction bool
}

// WithNamespace 设置日志命名空间，多级以 "." 连接。
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 从 Context 中按 key 提取值，以 fieldName 输出。
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{
			Key:       key,
			FieldName: fieldName,
		})
	}
}

// WithStandardContext 提取 request_id 与 user_id。
//
// pipeline 使用 RequestIDKey 写入 request_id。
func WithStandardContext() Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields,
			ContextField{Key: RequestIDKey, FieldName: "request_id"},
			ContextField{Key: UserIDKey, FieldName: "user_id"},
		)
	}
}

// WithTraceContext 开启 OpenTelemetry trace_id / span_id 自动提取。
func WithTraceContext() Option {
	return func(o *options) {
		o.enableTraceExtraction = true
	}
}

// WithOutput 将日志写入指定 writer，优先于 Config.Output。常用于测试捕获输出。
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
