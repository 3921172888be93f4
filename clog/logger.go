package clog

import "context"

// Logger 结构化日志接口。
//
// 每个级别都有带 Context 的版本，用于提取 WithContextField / WithTraceContext 配置的字段。
// Fatal 写出日志后以状态码 1 退出进程。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger，不影响父 Logger。
	With(fields ...Field) Logger

	// WithNamespace 追加命名空间，如 "warden" -> "warden.registrar"。
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时调整级别，对共享同一 handler 的所有子 Logger 生效。
	SetLevel(level Level) error

	// Flush 同步缓冲区。
	Flush()
}
