// Package idgen 生成实例标识。
//
// Generator 是无状态、并发安全的字符串 ID 源，registrar 用它为每次注册生成唯一后缀。
// 生产环境使用 UUID，测试使用 Counter 获得可预测的结果。
package idgen

import (
	"strconv"
	"sync/atomic"
)

// Generator 字符串 ID 生成器，实现必须并发安全
type Generator interface {
	Next() string
}

// GeneratorFunc 函数适配器
type GeneratorFunc func() string

func (f GeneratorFunc) Next() string { return f() }

// Counter 单调递增计数器，从 1 开始，可选前缀
type Counter struct {
	prefix string
	n      atomic.Uint64
}

// NewCounter 创建计数器，如 NewCounter("id-") 依次生成 id-1、id-2
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

func (c *Counter) Next() string {
	return c.prefix + strconv.FormatUint(c.n.Add(1), 10)
}
