package registry

import (
	"context"
	"strings"
	"sync/atomic"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/xerrors"
)

// consulRegistry 基于 Consul agent 的注册实现，不注册健康检查
type consulRegistry struct {
	client *consulapi.Client
	logger clog.Logger
	closed atomic.Bool
}

// NewConsul 创建基于 Consul agent 的 Registry
func NewConsul(conn connector.ConsulConnector, opts ...Option) (Registry, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "consul connector is required")
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "consul client cannot be nil")
	}

	o := applyOptions(opts)
	return &consulRegistry{
		client: client,
		logger: o.logger.With(clog.String("driver", DriverConsul)),
	}, nil
}

func (r *consulRegistry) Register(ctx context.Context, service *ServiceInstance) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if err := service.validate(); err != nil {
		return err
	}

	reg := &consulapi.AgentServiceRegistration{
		ID:      service.ID,
		Name:    service.Name,
		Address: service.Address,
		Port:    service.Port,
		Tags:    service.Tags,
		Meta:    service.Metadata,
	}
	if err := r.client.Agent().ServiceRegisterOpts(reg, consulapi.ServiceRegisterOpts{}.WithContext(ctx)); err != nil {
		r.logger.ErrorContext(ctx, "failed to register service with consul agent",
			clog.String("service_id", service.ID), clog.Error(err))
		return xerrors.Wrap(err, "consul agent register failed")
	}

	r.logger.InfoContext(ctx, "service registered",
		clog.String("service_id", service.ID),
		clog.String("service_name", service.Name),
		clog.String("endpoint", service.Endpoint()))
	return nil
}

func (r *consulRegistry) Deregister(ctx context.Context, serviceID string) error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if strings.TrimSpace(serviceID) == "" {
		return xerrors.Wrap(ErrInvalidServiceInstance, "service id is required")
	}

	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	if err := r.client.Agent().ServiceDeregisterOpts(serviceID, q); err != nil {
		// agent 对未知 ID 返回 404
		var statusErr consulapi.StatusError
		if xerrors.As(err, &statusErr) && statusErr.Code == 404 {
			return xerrors.Wrapf(ErrServiceNotFound, "service %q", serviceID)
		}
		r.logger.ErrorContext(ctx, "failed to deregister service from consul agent",
			clog.String("service_id", serviceID), clog.Error(err))
		return xerrors.Wrap(err, "consul agent deregister failed")
	}

	r.logger.InfoContext(ctx, "service deregistered", clog.String("service_id", serviceID))
	return nil
}

func (r *consulRegistry) GetService(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if serviceName == "" {
		return nil, xerrors.Wrap(ErrInvalidServiceInstance, "service name is required")
	}

	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := r.client.Catalog().Service(serviceName, "", q)
	if err != nil {
		return nil, xerrors.Wrap(err, "consul catalog query failed")
	}

	instances := make([]*ServiceInstance, 0, len(entries))
	for _, e := range entries {
		addr := e.ServiceAddress
		if addr == "" {
			addr = e.Address
		}
		instances = append(instances, &ServiceInstance{
			ID:       e.ServiceID,
			Name:     e.ServiceName,
			Address:  addr,
			Port:     e.ServicePort,
			Tags:     e.ServiceTags,
			Metadata: e.ServiceMeta,
		})
	}
	return instances, nil
}

func (r *consulRegistry) Close() error {
	r.closed.Store(true)
	return nil
}
