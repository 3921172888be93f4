package registrar

import "github.com/ceyewan/warden/xerrors"

var (
	// ErrRegistryCommunication 与注册中心通信失败。Register / Deregister 只记录日志，不向上返回
	ErrRegistryCommunication = xerrors.New("registrar: registry communication failed")

	// ErrInvalidEndpoint Endpoint 配置错误
	ErrInvalidEndpoint = xerrors.New("registrar: invalid endpoint")
)
