// Package kvconfig 在启动期从分布式 KV 存储读取一次配置并解码为类型化结构。
//
// 读取是快速失败的：key 不存在返回 ErrConfigNotFound，内容无法解码返回 ErrConfigParse，
// 存储不可达返回包装后的通信错误。三者都应中止启动，本包不做重试。
// 日志只记录 key、存储类型与内容大小，从不记录配置内容本身（其中常包含密钥）。
//
//	store, _ := kvconfig.NewConsulStore(consulConn)
//	loader, _ := kvconfig.New(store, kvconfig.WithLogger(logger))
//	var settings auth.Settings
//	if err := loader.Fetch(ctx, "auth/jwt", &settings); err != nil {
//	    return err
//	}
package kvconfig

import (
	"context"
	"reflect"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/trace"
	"github.com/ceyewan/warden/xerrors"
)

const metricFetchTotal = "kvconfig_fetch_total"

// fetch 结果状态，用作指标 status 标签
const (
	statusSuccess  = "success"
	statusNotFound = "not_found"
	statusParse    = "parse_error"
	statusError    = "error"
)

// Loader 从 Store 读取并解码配置，并发安全
type Loader struct {
	store   Store
	decode  Decoder
	logger  clog.Logger
	fetches metrics.Counter
}

// New 创建 Loader
func New(store Store, opts ...Option) (*Loader, error) {
	if store == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "store is required")
	}

	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		format: FormatJSON,
	}
	for _, opt := range opts {
		opt(o)
	}

	decode, err := decoderFor(o.format)
	if err != nil {
		return nil, err
	}

	fetches, err := o.meter.Counter(metricFetchTotal, "Dynamic configuration fetches by store and result.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create kvconfig fetch counter")
	}

	return &Loader{
		store:   store,
		decode:  decode,
		logger:  o.logger.With(clog.String("store", store.Name())),
		fetches: fetches,
	}, nil
}

// Fetch 读取 key 并解码到 v（必须是非 nil 指针），阻塞直到完成或 ctx 结束
func (l *Loader) Fetch(ctx context.Context, key string, v any) (err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return xerrors.Wrap(ErrInvalidArgument, "key is required")
	}
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return xerrors.Wrapf(ErrInvalidArgument, "target for key %q must be a non-nil pointer", key)
	}

	ctx, span := trace.Start(ctx, "kvconfig.Fetch",
		attribute.String("kvconfig.key", key),
		attribute.String("kvconfig.store", l.store.Name()),
	)
	defer func() { trace.End(span, err) }()

	start := time.Now()
	logger := l.logger.With(clog.String("key", key))
	logger.InfoContext(ctx, "fetching dynamic configuration")

	data, err := l.store.Get(ctx, key)
	if err != nil {
		if xerrors.Is(err, ErrKeyNotFound) {
			l.record(ctx, statusNotFound)
			logger.ErrorContext(ctx, "configuration key not found")
			return xerrors.Wrapf(ErrConfigNotFound, "key %q in %s", key, l.store.Name())
		}
		l.record(ctx, statusError)
		logger.ErrorContext(ctx, "failed to read configuration store", clog.Error(err))
		return xerrors.Wrapf(err, "fetch key %q from %s", key, l.store.Name())
	}

	if err := l.decode(data, v); err != nil {
		l.record(ctx, statusParse)
		logger.ErrorContext(ctx, "failed to decode configuration",
			clog.Int("size", len(data)), clog.String("target", clog.TypeName(v)), clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "decode key %q as %s", key, clog.TypeName(v)), ErrConfigParse)
	}

	l.record(ctx, statusSuccess)
	logger.InfoContext(ctx, "dynamic configuration loaded",
		clog.Int("size", len(data)), clog.Duration("duration", time.Since(start)))
	return nil
}

func (l *Loader) record(ctx context.Context, status string) {
	l.fetches.Inc(ctx, metrics.L("store", l.store.Name()), metrics.L(metrics.LabelStatus, status))
}

// FetchAs 泛型版本的 Fetch，返回新分配的 *T
func FetchAs[T any](ctx context.Context, l *Loader, key string) (*T, error) {
	v := new(T)
	if err := l.Fetch(ctx, key, v); err != nil {
		return nil, err
	}
	return v, nil
}
