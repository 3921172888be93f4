package trace

// Config 链路追踪配置
//
//	trace:
//	  enabled: true
//	  endpoint: "otel-collector:4317"
//	  sampler: 0.1
type Config struct {
	// Enabled 为 false 时只在本地生成 TraceID，不导出 Span
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Sampler     float64 `mapstructure:"sampler"`
	Batcher     string  `mapstructure:"batcher"` // batch|simple
	Insecure    bool    `mapstructure:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}
