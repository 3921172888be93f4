package kvconfig

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/xerrors"
)

type redisStore struct {
	conn connector.RedisConnector
}

// NewRedisStore 基于 Redis 字符串类型创建 Store
func NewRedisStore(conn connector.RedisConnector) (Store, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "redis connector is required")
	}
	return &redisStore{conn: conn}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.conn.GetClient().Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "redis get %q", key)
	}
	return val, nil
}

func (s *redisStore) Name() string { return "redis" }
