package kvconfig

import (
	"context"
	"sync"
)

// Store 分布式 KV 存储的只读视图。
//
// key 不存在时必须返回 ErrKeyNotFound（可包装），其余错误视为通信失败。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Name 存储类型名，用于日志与指标，如 "etcd"
	Name() string
}

// MemoryStore 进程内 Store，用于测试与本地运行
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建内存 Store，复制 data 中的内容
func NewMemoryStore(data map[string][]byte) *MemoryStore {
	s := &MemoryStore{data: make(map[string][]byte, len(data))}
	for k, v := range data {
		s.data[k] = append([]byte(nil), v...)
	}
	return s
}

// Set 写入或覆盖一个 key
func (s *MemoryStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Name() string { return "memory" }
