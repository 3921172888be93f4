package idgen

import (
	"github.com/google/uuid"
)

// NewUUIDV7 生成 UUID v7（时间有序）
func NewUUIDV7() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return v7.String()
}

// NewUUIDV4 生成 UUID v4（随机）
func NewUUIDV4() string {
	return uuid.New().String()
}

// UUID UUID 生成器，默认 v4
type UUID struct {
	version string
}

// UUIDOption UUID 生成器选项
type UUIDOption func(*UUID)

// WithUUIDVersion 设置版本，支持 "v4" | "v7"，其他值按 v4 处理
func WithUUIDVersion(version string) UUIDOption {
	return func(u *UUID) {
		u.version = version
	}
}

// NewUUID 创建 UUID 生成器
//
//	gen := idgen.NewUUID(idgen.WithUUIDVersion("v7"))
//	id := gen.Next()
func NewUUID(opts ...UUIDOption) *UUID {
	u := &UUID{version: "v4"}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *UUID) Next() string {
	if u.version == "v7" {
		return NewUUIDV7()
	}
	return NewUUIDV4()
}
