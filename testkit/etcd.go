package testkit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/warden/connector"
)

// GetEtcdConfig 返回 etcd 测试配置
// 默认连接 127.0.0.1:2379，可通过 WARDEN_TEST_ETCD_ENDPOINTS（逗号分隔）覆盖
func GetEtcdConfig() *connector.EtcdConfig {
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   strings.Split(getEnv("WARDEN_TEST_ETCD_ENDPOINTS", "127.0.0.1:2379"), ","),
		DialTimeout: 5 * time.Second,
	}
}

// GetEtcdConnector 获取已连接的 etcd 连接器，不可达时跳过测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(GetEtcdConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("etcd not available, skipping: %v", err)
	}
	return conn
}
