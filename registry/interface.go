package registry

import (
	"context"
)

// Registry 服务注册接口，实现必须并发安全
type Registry interface {
	// Register 注册服务实例，相同 ID 重复注册会覆盖
	Register(ctx context.Context, service *ServiceInstance) error

	// Deregister 注销服务实例，实例不存在时返回 ErrServiceNotFound
	Deregister(ctx context.Context, serviceID string) error

	// GetService 查询某个服务的全部实例
	GetService(ctx context.Context, serviceName string) ([]*ServiceInstance, error)

	// Close 释放 registry 自身资源，不关闭借用的连接器
	Close() error
}
