package connector

import (
	"context"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

type redisConnector struct {
	*base
	cfg    *RedisConfig
	client *redis.Client
}

// NewRedis 创建 Redis 连接器
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis config is required")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	b, err := newBase("redis", cfg.Name, o)
	if err != nil {
		return nil, xerrors.Wrap(err, "create redis connector metrics")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	if cfg.EnableTracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, xerrors.Wrap(err, "instrument redis tracing")
		}
	}

	return &redisConnector{base: b, cfg: cfg, client: client}, nil
}

func (c *redisConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	c.logger.Info("attempting to connect to redis", clog.String("addr", c.cfg.Addr))

	err := c.client.Ping(ctx).Err()
	c.markConnect(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to redis", clog.String("addr", c.cfg.Addr), clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "redis connector[%s]", c.name), ErrConnection)
	}

	c.logger.Info("connected to redis", clog.String("addr", c.cfg.Addr))
	return nil
}

func (c *redisConnector) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.markHealth(ctx, false)
		c.logger.Warn("redis health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "redis connector[%s]", c.name), ErrHealthCheck)
	}
	c.markHealth(ctx, true)
	return nil
}

func (c *redisConnector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.markHealth(context.Background(), false)
	c.logger.Info("closing redis connection", clog.String("addr", c.cfg.Addr))

	if err := c.client.Close(); err != nil {
		c.logger.Error("failed to close redis connection", clog.Error(err))
		return err
	}
	return nil
}

func (c *redisConnector) GetClient() *redis.Client {
	return c.client
}
