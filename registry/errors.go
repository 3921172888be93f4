package registry

import "github.com/ceyewan/warden/xerrors"

var (
	// ErrServiceNotFound 服务实例不存在
	ErrServiceNotFound = xerrors.New("registry: service not found")

	// ErrInvalidServiceInstance 服务实例缺少必要字段
	ErrInvalidServiceInstance = xerrors.New("registry: invalid service instance")

	// ErrRegistryClosed registry 已关闭
	ErrRegistryClosed = xerrors.New("registry: closed")

	// ErrInvalidConfig 配置错误
	ErrInvalidConfig = xerrors.New("registry: invalid config")
)
