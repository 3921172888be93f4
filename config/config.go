// Package config 为 warden 提供启动期的静态配置加载，基于 Viper。
//
// 配置优先级：环境变量 > .env > 环境特定配置（config.<env>.yaml） > 基础配置（config.yaml） > 默认值。
// 环境变量以 EnvPrefix 开头，key 中的 "." 替换为 "_"，如 registry.driver -> WARDEN_REGISTRY_DRIVER。
//
// 配置只在启动时读取一次，不监听文件变化。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Name: "config", Paths: []string{"./configs"}},
//	    config.WithDefaults(map[string]any{"server.addr": ":8080"}),
//	)
//	if err := loader.Load(ctx); err != nil {
//	    return err
//	}
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//	_ = config.ValidateStruct(&cfg)
package config

import (
	"context"
	"strings"

	"github.com/ceyewan/warden/clog"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，只应调用一次
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Validate 检查已加载的配置非空
	Validate() error

	// ConfigFileUsed 返回实际读取的配置文件路径，未读取到文件时为空
	ConfigFileUsed() string
}

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型，默认 "yaml"
	EnvPrefix string   // 环境变量前缀，默认 "WARDEN"
	Env       string   // 环境名，为空时读取 <EnvPrefix>_ENV
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "WARDEN"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
}

// Option 加载器选项
type Option func(*options)

type options struct {
	logger   clog.Logger
	defaults map[string]any
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}

// WithDefaults 设置默认值。
//
// Viper 的 AutomaticEnv 只对已知 key 生效，只出现在环境变量中的配置项需要在这里声明默认值。
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// New 创建配置加载器。cfg 为 nil 时使用默认配置。
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	o := &options{
		logger:   clog.Discard(),
		defaults: make(map[string]any),
	}
	for _, opt := range opts {
		opt(o)
	}

	return newLoader(cfg, o), nil
}
