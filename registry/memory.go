package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ceyewan/warden/xerrors"
)

// MemoryRegistry 进程内注册表，用于测试与本地运行
type MemoryRegistry struct {
	mu        sync.RWMutex
	instances map[string]*ServiceInstance
	closed    bool
}

// NewMemory 创建进程内 Registry
func NewMemory() *MemoryRegistry {
	return &MemoryRegistry{instances: make(map[string]*ServiceInstance)}
}

func (r *MemoryRegistry) Register(ctx context.Context, service *ServiceInstance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := service.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	r.instances[service.ID] = service.clone()
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, serviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(serviceID) == "" {
		return xerrors.Wrap(ErrInvalidServiceInstance, "service id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if _, ok := r.instances[serviceID]; !ok {
		return xerrors.Wrapf(ErrServiceNotFound, "service %q", serviceID)
	}
	delete(r.instances, serviceID)
	return nil
}

// GetService 按 ID 排序返回实例副本
func (r *MemoryRegistry) GetService(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	var out []*ServiceInstance
	for _, inst := range r.instances {
		if inst.Name == serviceName {
			out = append(out, inst.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len 当前注册的实例数
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
