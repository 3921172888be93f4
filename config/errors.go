package config

import "github.com/ceyewan/warden/xerrors"

// ErrValidationFailed 配置为空或未通过结构体校验
var ErrValidationFailed = xerrors.New("config: validation failed")

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalid 检查错误是否为配置校验失败
func IsInvalid(err error) bool {
	return xerrors.Is(err, ErrValidationFailed)
}
