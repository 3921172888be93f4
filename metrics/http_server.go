package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ceyewan/warden/xerrors"
)

// HTTP 服务器请求指标名
const (
	MetricHTTPServerRequestTotal    = "http_server_requests_total"
	MetricHTTPServerDurationSeconds = "http_server_request_duration_seconds"
)

// DefaultHTTPDurationBuckets 请求耗时直方图默认桶，单位秒
var DefaultHTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPServerOption HTTPServerMetrics 选项
type HTTPServerOption func(*httpServerOptions)

type httpServerOptions struct {
	buckets []float64
	static  []Label
}

// WithDurationBuckets 覆盖耗时直方图的桶
func WithDurationBuckets(buckets []float64) HTTPServerOption {
	return func(o *httpServerOptions) {
		if len(buckets) > 0 {
			o.buckets = buckets
		}
	}
}

// WithStaticLabels 为每个观测值附加固定标签，如 region、version
func WithStaticLabels(labels ...Label) HTTPServerOption {
	return func(o *httpServerOptions) {
		o.static = append(o.static, labels...)
	}
}

// HTTPServerMetrics 入站请求的计数与耗时。
//
// route 使用路由模板而非原始路径；未命中路由记为 UnknownRoute。
// nil 接收者上的 Observe 是空操作。
type HTTPServerMetrics struct {
	base     []Label
	requests Counter
	duration Histogram
}

// NewHTTPServerMetrics 在 m 上注册请求计数器与耗时直方图，m 为 nil 时使用 Discard
func NewHTTPServerMetrics(m Meter, service string, opts ...HTTPServerOption) (*HTTPServerMetrics, error) {
	if m == nil {
		m = Discard()
	}
	o := &httpServerOptions{buckets: DefaultHTTPDurationBuckets}
	for _, opt := range opts {
		opt(o)
	}

	if service = strings.TrimSpace(service); service == "" {
		service = "unknown"
	}

	requests, err := m.Counter(MetricHTTPServerRequestTotal, "Total number of HTTP requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}
	duration, err := m.Histogram(MetricHTTPServerDurationSeconds, "HTTP request duration in seconds.",
		WithUnit("s"), WithBuckets(o.buckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request duration histogram")
	}

	base := make([]Label, 0, len(o.static)+2)
	base = append(base, o.static...)
	base = append(base, L(LabelService, service), L(LabelOperation, OperationHTTPServer))

	return &HTTPServerMetrics{base: base, requests: requests, duration: duration}, nil
}

// Observe 记录一次已完成的请求
func (m *HTTPServerMetrics) Observe(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}

	labels := make([]Label, 0, len(m.base)+4)
	labels = append(labels, m.base...)
	labels = append(labels,
		L(LabelMethod, normalizeMethod(method)),
		L(LabelRoute, normalizeRoute(route)),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requests.Inc(ctx, labels...)
	m.duration.Record(ctx, elapsed.Seconds(), labels...)
}

func normalizeMethod(method string) string {
	if method = strings.ToUpper(strings.TrimSpace(method)); method == "" {
		return http.MethodGet
	}
	return method
}

func normalizeRoute(route string) string {
	if route = strings.TrimSpace(route); route == "" {
		return UnknownRoute
	}
	return route
}
