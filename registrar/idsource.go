package registrar

import (
	"github.com/ceyewan/warden/idgen"
)

// IDSource 为一次注册生成实例标识，实现必须并发安全。
// 同一服务的多个进程并发注册时，生成的标识不能冲突。
type IDSource interface {
	NewID(serviceName string) RegistrationID
}

// IDSourceFunc 函数适配器
type IDSourceFunc func(serviceName string) RegistrationID

func (f IDSourceFunc) NewID(serviceName string) RegistrationID { return f(serviceName) }

// UUIDSource 生成 "<serviceName>-<uuid v4>"
type UUIDSource struct{}

func (UUIDSource) NewID(serviceName string) RegistrationID {
	return RegistrationID(serviceName + "-" + idgen.NewUUIDV4())
}

// SequenceSource 生成 "<serviceName>-1"、"<serviceName>-2"……，用于测试
type SequenceSource struct {
	counter *idgen.Counter
}

// NewSequenceSource 创建从 1 开始的确定性标识源
func NewSequenceSource() *SequenceSource {
	return &SequenceSource{counter: idgen.NewCounter("")}
}

func (s *SequenceSource) NewID(serviceName string) RegistrationID {
	return RegistrationID(serviceName + "-" + s.counter.Next())
}
