package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/ceyewan/warden/connector"
)

// GetConsulConfig 返回 Consul 测试配置
// 默认连接 127.0.0.1:8500，可通过 WARDEN_TEST_CONSUL_ADDR 覆盖
func GetConsulConfig() *connector.ConsulConfig {
	return &connector.ConsulConfig{
		Name:    "test-consul",
		Address: getEnv("WARDEN_TEST_CONSUL_ADDR", "127.0.0.1:8500"),
		Timeout: 3 * time.Second,
	}
}

// GetConsulConnector 获取已连接的 Consul 连接器，不可达时跳过测试
func GetConsulConnector(t *testing.T) connector.ConsulConnector {
	t.Helper()
	conn, err := connector.NewConsul(GetConsulConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create consul connector: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("consul not available, skipping: %v", err)
	}
	return conn
}
