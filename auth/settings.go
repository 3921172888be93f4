package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/ceyewan/warden/kvconfig"
	"github.com/ceyewan/warden/xerrors"
)

// Settings JWT 校验参数，启动时从 KV 存储读取一次，之后只读。
//
// JSON 字段名与存储中已有的配置文档保持一致（大小写不敏感）。
type Settings struct {
	SecretKey                   string  `json:"secretKey" yaml:"secretKey" mapstructure:"secret_key"`
	Issuer                      string  `json:"issuer" yaml:"issuer" mapstructure:"issuer"`
	Audience                    string  `json:"audience" yaml:"audience" mapstructure:"audience"`
	AccessTokenLifetimeMinutes  float64 `json:"accessTokenLifetimeInMinutes" yaml:"accessTokenLifetimeInMinutes" mapstructure:"access_token_lifetime_minutes"`
	RefreshTokenLifetimeMinutes float64 `json:"refreshTokenLifetimeInMinutes" yaml:"refreshTokenLifetimeInMinutes" mapstructure:"refresh_token_lifetime_minutes"`
}

// AccessTokenTTL Access Token 有效期
func (s Settings) AccessTokenTTL() time.Duration {
	return minutes(s.AccessTokenLifetimeMinutes)
}

// RefreshTokenTTL Refresh Token 有效期
func (s Settings) RefreshTokenTTL() time.Duration {
	return minutes(s.RefreshTokenLifetimeMinutes)
}

// LogValue 实现 slog.LogValuer，日志中不输出密钥
func (s Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("issuer", s.Issuer),
		slog.String("audience", s.Audience),
		slog.Int("secret_len", len(s.SecretKey)),
		slog.Float64("access_token_lifetime_minutes", s.AccessTokenLifetimeMinutes),
		slog.Float64("refresh_token_lifetime_minutes", s.RefreshTokenLifetimeMinutes),
	)
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// FetchSettings 从 KV 存储读取认证配置。
//
// 返回的错误与 kvconfig.Loader.Fetch 一致：ErrConfigNotFound / ErrConfigParse / 通信错误。
func FetchSettings(ctx context.Context, loader *kvconfig.Loader, key string) (*Settings, error) {
	if loader == nil {
		return nil, xerrors.Wrap(kvconfig.ErrInvalidArgument, "loader is required")
	}
	return kvconfig.FetchAs[Settings](ctx, loader, key)
}
