package registry

import (
	"net"
	"strconv"
	"strings"

	"github.com/ceyewan/warden/xerrors"
)

// ServiceInstance 代表一个服务实例
type ServiceInstance struct {
	ID       string            `json:"id"`                 // 唯一实例 ID
	Name     string            `json:"name"`               // 服务名称 (如 task-service)
	Address  string            `json:"address"`            // 对外地址，主机名或 IP
	Port     int               `json:"port"`               // 对外端口
	Tags     []string          `json:"tags,omitempty"`     // 标签
	Metadata map[string]string `json:"metadata,omitempty"` // 元数据 (Version, Zone 等)
}

// Endpoint 返回 host:port
func (s *ServiceInstance) Endpoint() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

func (s *ServiceInstance) validate() error {
	if s == nil {
		return xerrors.Wrap(ErrInvalidServiceInstance, "instance is nil")
	}
	var c xerrors.Collector
	c.Collectf(strings.TrimSpace(s.ID) == "", ErrInvalidServiceInstance, "id is required")
	c.Collectf(strings.TrimSpace(s.Name) == "", ErrInvalidServiceInstance, "name is required")
	c.Collectf(strings.Contains(s.ID, "/") || strings.Contains(s.Name, "/"), ErrInvalidServiceInstance,
		"id and name must not contain '/'")
	c.Collectf(s.Port < 0 || s.Port > 65535, ErrInvalidServiceInstance, "port %d out of range", s.Port)
	return c.Err()
}

func (s *ServiceInstance) clone() *ServiceInstance {
	cp := *s
	cp.Tags = append([]string(nil), s.Tags...)
	if s.Metadata != nil {
		cp.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
