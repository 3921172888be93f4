// Package auth 根据启动期读取的 Settings 构建 JWT 校验策略，并提供 Gin 认证中间件。
//
// 策略只做校验，不签发 Token。校验规则：
//   - 对称密钥为 SecretKey 的 UTF-8 字节，至少 32 字节；仅接受 HS256 / HS384 / HS512
//   - iss、aud 必须与配置完全一致
//   - exp 必填，且不允许时钟偏差：exp 等于当前时间即视为过期
//
// 基本使用：
//
//	settings, err := auth.FetchSettings(ctx, loader, "auth/jwt")
//	if err != nil {
//	    return err
//	}
//	policy, err := auth.Build(settings, auth.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	api := engine.Group("/api", policy.GinMiddleware())
package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/xerrors"
)

// MinSecretKeyLength HMAC 密钥的最小字节数（256 位）
const MinSecretKeyLength = 32

var validMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Policy 不可变的 Token 校验策略，可在请求间并发共享
type Policy struct {
	settings Settings
	key      []byte
	parser   *jwt.Parser

	logger    clog.Logger
	validated metrics.Counter
}

// Build 校验 settings 并构建 Policy。
//
// settings 为 nil、密钥为空或过短、issuer / audience 为空、有效期为负时返回 ErrInvalidPolicy，
// 错误信息列出全部问题，不包含密钥本身。
func Build(settings *Settings, opts ...Option) (*Policy, error) {
	if settings == nil {
		return nil, xerrors.Wrap(ErrInvalidPolicy, "settings are required")
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	validated, err := o.meter.Counter(MetricTokensValidated, "Total number of tokens validated")
	if err != nil {
		return nil, xerrors.Wrap(err, "create token validation counter")
	}

	s := *settings
	p := &Policy{
		settings: s,
		key:      []byte(s.SecretKey),
		parser: jwt.NewParser(
			jwt.WithValidMethods(validMethods),
			jwt.WithIssuer(s.Issuer),
			jwt.WithAudience(s.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(o.now),
		),
		logger:    o.logger,
		validated: validated,
	}

	o.logger.Info("token validation policy built", clog.Any("settings", s))
	return p, nil
}

func validateSettings(s *Settings) error {
	var c xerrors.Collector
	c.Collectf(s.SecretKey == "", ErrInvalidPolicy, "secret key is empty")
	c.Collectf(s.SecretKey != "" && len(s.SecretKey) < MinSecretKeyLength, ErrInvalidPolicy,
		"secret key must be at least %d bytes, got %d", MinSecretKeyLength, len(s.SecretKey))
	c.Collectf(strings.TrimSpace(s.Issuer) == "", ErrInvalidPolicy, "issuer is empty")
	c.Collectf(strings.TrimSpace(s.Audience) == "", ErrInvalidPolicy, "audience is empty")
	c.Collectf(s.AccessTokenLifetimeMinutes < 0, ErrInvalidPolicy,
		"access token lifetime must not be negative, got %v", s.AccessTokenLifetimeMinutes)
	c.Collectf(s.RefreshTokenLifetimeMinutes < 0, ErrInvalidPolicy,
		"refresh token lifetime must not be negative, got %v", s.RefreshTokenLifetimeMinutes)
	return c.Err()
}

// Settings 返回构建时使用的配置副本
func (p *Policy) Settings() Settings {
	return p.settings
}

// Validate 校验 Token 的签名、签发者、受众与有效期，成功时返回 Claims
func (p *Policy) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := p.parser.ParseWithClaims(tokenString, claims, p.keyFunc)
	if err != nil {
		mapped, errType := classify(err)
		p.validated.Inc(ctx,
			metrics.L(metrics.LabelStatus, metrics.OutcomeError),
			metrics.L(metrics.LabelErrorType, errType),
		)
		p.logger.WarnContext(ctx, "token rejected", clog.String("error_type", errType), clog.Error(err))
		return nil, mapped
	}

	p.validated.Inc(ctx,
		metrics.L(metrics.LabelStatus, metrics.OutcomeSuccess),
		metrics.L(metrics.LabelErrorType, "none"),
	)
	p.logger.DebugContext(ctx, "token validated", clog.String("subject", claims.Subject))
	return claims, nil
}

// keyFunc 只为 HMAC 算法提供密钥
func (p *Policy) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, xerrors.Wrapf(ErrInvalidSignature, "unexpected signing method %s", token.Method.Alg())
	}
	return p.key, nil
}

// classify 将 jwt 错误映射为本包的哨兵错误与指标 error_type
func classify(err error) (error, string) {
	switch {
	case xerrors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken, "expired"
	case xerrors.Is(err, jwt.ErrTokenSignatureInvalid), xerrors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature, "invalid_signature"
	case xerrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer, "invalid_issuer"
	case xerrors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrInvalidAudience, "invalid_audience"
	default:
		return ErrInvalidToken, "invalid_token"
	}
}
