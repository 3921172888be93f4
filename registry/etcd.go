// Package registry 提供服务注册组件，支持 etcd、Consul 与进程内三种驱动。
//
// registry 只负责"写入/删除一条实例记录"：不维护租约、不做周期性续约、不上报健康状态，
// 进程的注册时机由 registrar 控制。驱动借用连接器的客户端，不负责连接的生命周期。
//
// ## etcd 存储结构
//
//	<namespace>/<service_name>/<instance_id> -> JSON(ServiceInstance)
//
// 例如：
//   - /warden/services/task-service/task-service-0b6c...
//
// ## 基本使用
//
//	etcdConn, _ := connector.NewEtcd(&cfg.Etcd, connector.WithLogger(logger))
//	defer etcdConn.Close()
//
//	reg, _ := registry.NewEtcd(etcdConn, &registry.Config{Namespace: "/warden/services"},
//	    registry.WithLogger(logger))
//	err := reg.Register(ctx, &registry.ServiceInstance{
//	    ID: "task-service-1", Name: "task-service", Address: "10.0.0.5", Port: 8080,
//	})
package registry

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/xerrors"
)

// etcdRegistry 基于 etcd 的注册实现
type etcdRegistry struct {
	client *clientv3.Client
	cfg    Config
	logger clog.Logger

	mu     sync.Mutex
	keys   map[string]string // serviceID -> key，本进程写入的实例
	closed atomic.Bool
}

// NewEtcd 创建基于 etcd 的 Registry
func NewEtcd(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Registry, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "etcd connector is required")
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "etcd client cannot be nil")
	}

	c := Config{Driver: DriverEtcd}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &etcdRegistry{
		client: client,
		cfg:    c,
		logger: o.logger.With(clog.String("driver", DriverEtcd)),
		keys:   make(map[string]string),
	}, nil
}

func (r *etcdRegistry) buildPrefix(serviceName string) string {
	return path.Join(r.cfg.Namespace, serviceName) + "/"
}

func (r *etcdRegistry) buildKey(serviceName, serviceID string) string {
	return r.buildPrefix(serviceName) + serviceID
}

// Register 写入实例记录，不附带租约
func (r *etcdRegistry) Register(ctx context.Context, service *ServiceInstance) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if err := service.validate(); err != nil {
		return err
	}

	value, err := json.Marshal(service)
	if err != nil {
		return xerrors.Wrap(err, "marshal service failed")
	}

	key := r.buildKey(service.Name, service.ID)
	if _, err := r.client.Put(ctx, key, string(value)); err != nil {
		r.logger.ErrorContext(ctx, "failed to put service", clog.String("key", key), clog.Error(err))
		return xerrors.Wrap(err, "put service failed")
	}

	r.mu.Lock()
	r.keys[service.ID] = key
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "service registered",
		clog.String("service_id", service.ID),
		clog.String("service_name", service.Name),
		clog.String("endpoint", service.Endpoint()))
	return nil
}

// Deregister 删除实例记录。非本进程写入的实例按 ID 在 namespace 下查找
func (r *etcdRegistry) Deregister(ctx context.Context, serviceID string) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if strings.TrimSpace(serviceID) == "" {
		return xerrors.Wrap(ErrInvalidServiceInstance, "service id is required")
	}

	r.mu.Lock()
	key, ok := r.keys[serviceID]
	r.mu.Unlock()

	if !ok {
		found, err := r.lookupKey(ctx, serviceID)
		if err != nil {
			return err
		}
		key = found
	}

	resp, err := r.client.Delete(ctx, key)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to delete service", clog.String("key", key), clog.Error(err))
		return xerrors.Wrap(err, "delete service failed")
	}

	r.mu.Lock()
	delete(r.keys, serviceID)
	r.mu.Unlock()

	if resp.Deleted == 0 {
		return xerrors.Wrapf(ErrServiceNotFound, "service %q", serviceID)
	}
	r.logger.InfoContext(ctx, "service deregistered", clog.String("service_id", serviceID))
	return nil
}

func (r *etcdRegistry) lookupKey(ctx context.Context, serviceID string) (string, error) {
	resp, err := r.client.Get(ctx, r.cfg.Namespace+"/", clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return "", xerrors.Wrap(err, "lookup service failed")
	}
	for _, kv := range resp.Kvs {
		if path.Base(string(kv.Key)) == serviceID {
			return string(kv.Key), nil
		}
	}
	return "", xerrors.Wrapf(ErrServiceNotFound, "service %q", serviceID)
}

// GetService 获取服务实例列表，无法解析的记录会被跳过
func (r *etcdRegistry) GetService(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if serviceName == "" {
		return nil, xerrors.Wrap(ErrInvalidServiceInstance, "service name is required")
	}

	prefix := r.buildPrefix(serviceName)
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, xerrors.Wrap(err, "get service failed")
	}

	instances := make([]*ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("failed to unmarshal service instance",
				clog.String("key", string(kv.Key)), clog.Error(err))
			continue
		}
		instances = append(instances, &instance)
	}
	return instances, nil
}

// Close 标记关闭。写入的记录保留在 etcd 中，由 registrar 负责注销
func (r *etcdRegistry) Close() error {
	r.closed.Store(true)
	return nil
}
