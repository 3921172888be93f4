package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/ceyewan/warden/connector"
)

// GetRedisConfig 返回 Redis 测试配置
// 默认连接 127.0.0.1:6379，可通过 WARDEN_TEST_REDIS_ADDR 覆盖
func GetRedisConfig() *connector.RedisConfig {
	return &connector.RedisConfig{
		Name:        "test-redis",
		Addr:        getEnv("WARDEN_TEST_REDIS_ADDR", "127.0.0.1:6379"),
		DB:          1, // 使用 DB 1 避免与默认的 DB 0 冲突
		DialTimeout: time.Second,
	}
}

// GetRedisConnector 获取已连接的 Redis 连接器，不可达时跳过测试
func GetRedisConnector(t *testing.T) connector.RedisConnector {
	t.Helper()
	conn, err := connector.NewRedis(GetRedisConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create redis connector: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("redis not available, skipping: %v", err)
	}
	return conn
}
