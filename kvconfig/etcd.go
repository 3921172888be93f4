package kvconfig

import (
	"context"

	"github.com/ceyewan/warden/connector"
	"github.com/ceyewan/warden/xerrors"
)

type etcdStore struct {
	conn connector.EtcdConnector
}

// NewEtcdStore 基于 etcd 连接器创建 Store，读取单个 key 的最新版本。
// 连接器生命周期由调用方管理。
func NewEtcdStore(conn connector.EtcdConnector) (Store, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "etcd connector is required")
	}
	return &etcdStore{conn: conn}, nil
}

func (s *etcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.conn.GetClient().Get(ctx, key)
	if err != nil {
		return nil, xerrors.Wrapf(err, "etcd get %q", key)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrKeyNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (s *etcdStore) Name() string { return "etcd" }
