package connector

import (
	"context"
	"sync/atomic"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
)

const (
	metricConnectTotal = "connector_connect_total"
	metricUp           = "connector_up"
)

// base 各连接器共享的健康状态、日志与指标
type base struct {
	kind    string
	name    string
	logger  clog.Logger
	healthy atomic.Bool
	closed  atomic.Bool

	connects metrics.Counter
	up       metrics.Gauge
}

func newBase(kind, name string, o *options) (*base, error) {
	b := &base{
		kind:   kind,
		name:   name,
		logger: o.logger.With(clog.String("connector", kind), clog.String("name", name)),
	}

	var err error
	if b.connects, err = o.meter.Counter(metricConnectTotal, "Connection attempts by connector and result."); err != nil {
		return nil, err
	}
	if b.up, err = o.meter.Gauge(metricUp, "Whether the last health probe succeeded (1) or not (0)."); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *base) labels(extra ...metrics.Label) []metrics.Label {
	return append([]metrics.Label{metrics.L("kind", b.kind), metrics.L("connector", b.name)}, extra...)
}

// markConnect 记录一次 Connect 结果
func (b *base) markConnect(ctx context.Context, err error) {
	status := metrics.OutcomeSuccess
	if err != nil {
		status = metrics.OutcomeError
	}
	b.connects.Inc(ctx, b.labels(metrics.L(metrics.LabelStatus, status))...)
	b.markHealth(ctx, err == nil)
}

func (b *base) markHealth(ctx context.Context, ok bool) {
	b.healthy.Store(ok)
	val := 0.0
	if ok {
		val = 1
	}
	b.up.Set(ctx, val, b.labels()...)
}

func (b *base) IsHealthy() bool {
	return b.healthy.Load()
}

func (b *base) Name() string {
	return b.name
}
