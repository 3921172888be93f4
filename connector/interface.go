// Package connector 管理 warden 依赖的外部连接：etcd、Consul、Redis。
//
// 连接器负责连接的生命周期，组件（registry、kvconfig）只借用客户端，不调用 Close。
// NewXXX 只创建客户端，Connect 时才发起探测请求，失败即返回错误。
//
//	conn, err := connector.NewConsul(&connector.ConsulConfig{Address: "127.0.0.1:8500"},
//	    connector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//	if err := conn.Connect(ctx); err != nil {
//	    return err
//	}
//	kv := conn.GetClient().KV()
package connector

import (
	"context"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 所有连接器的通用行为，方法并发安全。
type Connector interface {
	// Connect 探测服务端是否可用，可重复调用
	Connect(ctx context.Context) error

	// Close 释放底层客户端，可重复调用
	Close() error

	// HealthCheck 发送探测请求并更新 IsHealthy 缓存
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最近一次探测的结果，不阻塞
	IsHealthy() bool

	// Name 连接器实例名称，用于日志和指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// EtcdConnector etcd 连接器，服务于 registry 与 kvconfig
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// ConsulConnector Consul 连接器，服务于 agent 服务注册与 KV 读取
type ConsulConnector interface {
	TypedConnector[*consulapi.Client]
}

// RedisConnector Redis 连接器，服务于 kvconfig
type RedisConnector interface {
	TypedConnector[*redis.Client]
}
