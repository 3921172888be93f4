// Package metrics 为 warden 提供指标收集能力。
//
// 基于 OpenTelemetry 构建，通过 Prometheus exporter 暴露；组件只依赖本包的
// Counter / Gauge / Histogram 接口，未启用时使用 Discard() 返回的空实现。
//
//	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "orders", Port: 9090, Path: "/metrics"})
//	counter, _ := meter.Counter("registrar_operations_total", "Registration operations.")
//	counter.Inc(ctx, metrics.L("operation", "register"), metrics.L("status", "success"))
package metrics

import (
	"context"
	"net/http"
)

// Counter 只增不减的累计值
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可任意增减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 值分布，如请求耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂，创建的指标并发安全。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Handler 返回 Prometheus 抓取端点，未启用时返回 404 Handler
	Handler() http.Handler

	// Shutdown 停止内置 HTTP 服务器并刷新指标
	Shutdown(ctx context.Context) error
}

// MetricOption 指标创建选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	Unit    string
	Buckets []float64
}

// WithUnit 设置单位，如 "s"、"By"
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图桶边界，仅对 Histogram 生效
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}

func applyMetricOptions(opts []MetricOption) *MetricOptions {
	o := &MetricOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
