package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "orders"
//	  port: 9090
//	  path: "/metrics"
//	  enable_runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回空实现
	Enabled bool `mapstructure:"enabled"`

	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`

	// Port 大于 0 时启动独立的 HTTP 服务器暴露指标
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`

	// EnableRuntime 采集 Go 运行时指标（GC、goroutine、内存）
	EnableRuntime bool `mapstructure:"enable_runtime"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "warden"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
