package kvconfig

import "github.com/ceyewan/warden/xerrors"

var (
	// ErrKeyNotFound Store 中不存在该 key，由各 Store 实现返回
	ErrKeyNotFound = xerrors.New("kvconfig: key not found")

	// ErrConfigNotFound 请求的配置 key 不存在。启动期致命错误。
	ErrConfigNotFound = xerrors.New("kvconfig: config not found")

	// ErrConfigParse 配置存在但无法解码为目标结构（空值、格式错误、形状不符）。启动期致命错误。
	ErrConfigParse = xerrors.New("kvconfig: config parse failed")

	// ErrInvalidArgument 参数错误，如 key 为空、目标不是指针
	ErrInvalidArgument = xerrors.New("kvconfig: invalid argument")
)
