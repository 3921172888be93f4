package auth

import "github.com/ceyewan/warden/xerrors"

var (
	// ErrInvalidPolicy 认证配置不完整或不安全，Build 失败。启动期致命错误。
	ErrInvalidPolicy = xerrors.New("auth: invalid policy")

	ErrMissingToken     = xerrors.New("auth: missing token")
	ErrInvalidToken     = xerrors.New("auth: invalid token")
	ErrExpiredToken     = xerrors.New("auth: token expired")
	ErrInvalidSignature = xerrors.New("auth: invalid signature")
	ErrInvalidIssuer    = xerrors.New("auth: invalid issuer")
	ErrInvalidAudience  = xerrors.New("auth: invalid audience")
)
