package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

// ClaimsKey Gin Context 中保存 *Claims 的键
const ClaimsKey = "auth:claims"

const bearerScheme = "Bearer"

// GinMiddleware 返回 Gin 认证中间件。
//
// 只从 Authorization: Bearer <token> 读取 Token。失败时以 401 中止请求，
// 响应体统一为 {"error":"unauthorized"}，具体原因只写入服务端日志。
// 成功时把 Claims 存入 Gin Context，并把 subject 作为 user_id 写入请求 Context。
func (p *Policy) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearer(c.Request)
		if err != nil {
			// Token 缺失不计入验证指标
			abortUnauthorized(c, err)
			return
		}

		ctx := c.Request.Context()
		claims, err := p.Validate(ctx, token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set(ClaimsKey, claims)
		if claims.Subject != "" {
			c.Request = c.Request.WithContext(context.WithValue(ctx, clog.UserIDKey, claims.Subject))
		}
		c.Next()
	}
}

// ExtractBearer 从 Authorization 头提取 Bearer Token，scheme 大小写不敏感
func ExtractBearer(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", xerrors.Wrap(ErrInvalidToken, "authorization scheme is not bearer")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// abortUnauthorized 按 RFC 6750 设置 WWW-Authenticate：缺少凭证时不带 error 参数
func abortUnauthorized(c *gin.Context, err error) {
	challenge := bearerScheme
	if !xerrors.Is(err, ErrMissingToken) {
		challenge = bearerScheme + ` error="invalid_token"`
	}
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// RequireRoles 要求 Claims 拥有全部指定角色，必须放在 GinMiddleware 之后
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortUnauthorized(c, ErrMissingToken)
			return
		}
		for _, required := range roles {
			if !claims.HasRole(required) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}
		c.Next()
	}
}

// GetClaims 从 Gin Context 获取 Claims
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
