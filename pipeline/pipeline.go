// Package pipeline 组装 warden 的 HTTP 请求处理管线。
//
// 中间件顺序固定：Recover（最外层，统一错误映射）→ RequestID → 可选的链路追踪 →
// AccessLog → 认证（仅受保护路由组）→ handler。handler 通过 Handle 包装后，
// 还会依次经过 Logging、Validation 两个 Behavior 再执行业务逻辑。
//
// 错误响应只有两种形态：字段级校验失败为 400 {"errors":[{"field","error"}]}，
// 其他一律为不透明的 500 {"error":"An unexpected error occurred."}，细节只写服务端日志。
package pipeline

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ceyewan/warden/auth"
	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/metrics"
	"github.com/ceyewan/warden/trace"
)

// DefaultAuthPrefix 默认的受保护路由前缀
const DefaultAuthPrefix = "/api"

// Pipeline 请求处理管线
type Pipeline struct {
	policy      *auth.Policy
	logger      clog.Logger
	httpMetrics *metrics.HTTPServerMetrics
	validate    *validator.Validate
	behaviors   []Behavior
	serviceName string
	authPrefix  string
	tracing     bool
}

// New 基于已构建的认证策略创建管线
func New(policy *auth.Policy, opts ...Option) (*Pipeline, error) {
	if policy == nil {
		return nil, ErrPolicyRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(o.meter, o.serviceName)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		policy:      policy,
		logger:      o.logger.WithNamespace("pipeline"),
		httpMetrics: httpMetrics,
		validate:    o.validate,
		serviceName: o.serviceName,
		authPrefix:  normalizePrefix(o.authPrefix),
		tracing:     o.tracing,
	}
	if p.validate == nil {
		p.validate = NewValidator()
	}

	if o.behaviors != nil {
		p.behaviors = o.behaviors
	} else {
		p.behaviors = []Behavior{LoggingBehavior(p.logger), ValidationBehavior(p.validate)}
	}
	return p, nil
}

// Install 在 engine 上安装全局中间件，返回带认证的路由组。
// 需在注册任何路由之前调用；engine 之外注册的路由不受认证保护。
func (p *Pipeline) Install(engine *gin.Engine) *gin.RouterGroup {
	engine.HandleMethodNotAllowed = true

	engine.Use(p.Recover(), p.RequestID())
	if p.tracing {
		engine.Use(trace.GinMiddleware(p.serviceName))
	}
	engine.Use(p.AccessLog())

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorBody{Error: "not found"})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorBody{Error: "method not allowed"})
	})

	return engine.Group(p.authPrefix, p.policy.GinMiddleware())
}

// Policy 返回管线使用的认证策略
func (p *Pipeline) Policy() *auth.Policy {
	return p.policy
}

// Validator 返回管线使用的校验器，可用于注册自定义规则
func (p *Pipeline) Validator() *validator.Validate {
	return p.validate
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
	}
	return prefix
}
