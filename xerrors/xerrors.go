// Package xerrors 提供 warden 各组件共享的错误工具：上下文包装、错误码、多错误聚合。
//
// 组件的哨兵错误统一用 New 声明，调用方通过 Is / As 判断，不比较字符串。
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

// 跨组件共享的哨兵错误。
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("unavailable")
)

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Wrap 用上下文信息包装错误，保留错误链。err 为 nil 时返回 nil。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Mark 把 err 同时挂到 sentinel 之下，使 Is(result, sentinel) 与 Is(result, err) 都成立。
//
// 适用于把底层驱动错误归类为组件哨兵错误，又不丢失原始原因的场景。
func Mark(err, sentinel error) error {
	if err == nil {
		return nil
	}
	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return &markedError{sentinel: sentinel, cause: err}
}

type markedError struct {
	sentinel error
	cause    error
}

func (e *markedError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *markedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}

// WithCode 用机器可读的错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取最外层的错误码，没有则返回空串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil，则 panic。仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// Collector 收集多个错误。零值可用，非并发安全。
type Collector struct {
	errs []error
}

// Collect 记录一个错误，nil 被忽略。
func (c *Collector) Collect(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Collectf 在 cond 为 true 时记录一个格式化错误，并挂到 sentinel 之下。
func (c *Collector) Collectf(cond bool, sentinel error, format string, args ...any) {
	if !cond {
		return
	}
	c.Collect(Mark(fmt.Errorf(format, args...), sentinel))
}

// Len 返回已收集的错误数量。
func (c *Collector) Len() int {
	return len(c.errs)
}

// Err 返回聚合后的错误；无错误时返回 nil，仅一个时原样返回。
func (c *Collector) Err() error {
	return Combine(c.errs...)
}

// MultiError 合并多个错误，Is / As 会遍历全部成员。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	parts := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 将多个错误合并为一个，忽略 nil。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}
