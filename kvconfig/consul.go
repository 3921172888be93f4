package kvconfig

import (
	"context"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/xerrors"
)

type consulStore struct {
	conn connector.ConsulConnector
}

// NewConsulStore 基于 Consul KV 创建 Store
func NewConsulStore(conn connector.ConsulConnector) (Store, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "consul connector is required")
	}
	return &consulStore{conn: conn}, nil
}

func (s *consulStore) Get(ctx context.Context, key string) ([]byte, error) {
	q := (&consulapi.QueryOptions{}).WithContext(ctx)
	pair, _, err := s.conn.GetClient().KV().Get(key, q)
	if err != nil {
		return nil, xerrors.Wrapf(err, "consul kv get %q", key)
	}
	if pair == nil {
		return nil, ErrKeyNotFound
	}
	return pair.Value, nil
}

func (s *consulStore) Name() string { return "consul" }
