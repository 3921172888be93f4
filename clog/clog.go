// Package clog 为 warden 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 层级命名空间，每个组件追加自己的名字
//   - 从 Context 提取 request_id、OTel trace_id 等字段
//   - Payload 字段：尽力序列化请求体，失败不会影响业务
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"},
//	    clog.WithNamespace("order-service"),
//	    clog.WithTraceContext(),
//	)
//	logger.Info("service registered", clog.String("service_id", id))
package clog

import "fmt"

// New 创建一个新的 Logger 实例。config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}
