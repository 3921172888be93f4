// Package testkit 提供测试共用的依赖：日志、指标、唯一 ID 与外部服务连接器。
//
// 外部服务（etcd、Consul、Redis）不可达时对应的 GetXXXConnector 会 t.Skip，
// 因此依赖它们的测试在没有本地环境时自动跳过。地址可通过 WARDEN_TEST_* 环境变量覆盖。
package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

// connectTimeout 探测外部服务的超时，超时即跳过测试
const connectTimeout = 2 * time.Second

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	t.Helper()
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  NewMeter(t),
	}
}

// NewLogger 返回一个用于测试的 logger，使用开发环境格式，只输出 warn 以上
func NewLogger() clog.Logger {
	cfg := clog.NewDevDefaultConfig()
	cfg.Level = "warn"
	logger, err := clog.New(cfg, clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个启用但不监听端口的 meter，可通过 Handler() 抓取
func NewMeter(t *testing.T) metrics.Meter {
	t.Helper()
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "test"})
	if err != nil {
		return metrics.Discard()
	}
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key 或服务名后缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
