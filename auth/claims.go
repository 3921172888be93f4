package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims JWT 载荷。
//
// 内嵌 jwt.RegisteredClaims（sub、iss、aud、exp 等），并扩展常用的业务字段。
type Claims struct {
	jwt.RegisteredClaims

	Username string   `json:"uname,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// HasRole 是否拥有指定角色
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
