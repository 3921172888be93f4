package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/idgen"
)

// RequestIDHeader 请求 ID 的请求/响应头
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Recover 最外层中间件：恢复 panic，并把 handler 留下的错误映射为统一响应
func (p *Pipeline) Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := panicError(rec)
			p.logger.ErrorContext(c.Request.Context(), "panic recovered",
				clog.ErrorWithStack(err),
				clog.String("method", c.Request.Method),
				clog.String("path", c.Request.URL.Path))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			p.respond(c, Classify(err))
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			p.fail(c, c.Errors.Last().Err)
		}
	}
}

// RequestID 读取或生成请求 ID，写入响应头与请求 Context
func (p *Pipeline) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = idgen.NewUUIDV7()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), clog.RequestIDKey, id))
		c.Next()
	}
}

// AccessLog 记录每个请求的访问日志与 HTTP RED 指标
func (p *Pipeline) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		panicked := true
		defer func() {
			status := c.Writer.Status()
			switch {
			case panicked && !c.Writer.Written():
				status = http.StatusInternalServerError
			case len(c.Errors) > 0 && !c.Writer.Written():
				status = Classify(c.Errors.Last().Err).Status
			}
			p.observe(c, status, time.Since(start))
		}()

		c.Next()
		panicked = false
	}
}

func (p *Pipeline) observe(c *gin.Context, status int, latency time.Duration) {
	route := c.FullPath()
	ctx := c.Request.Context()

	fields := []clog.Field{
		clog.String("method", c.Request.Method),
		clog.String("route", route),
		clog.String("path", c.Request.URL.Path),
		clog.Int("status", status),
		clog.Duration("latency", latency),
		clog.String("client_ip", c.ClientIP()),
		clog.String("request_id", c.GetString(requestIDKey)),
	}
	if status >= http.StatusInternalServerError {
		p.logger.ErrorContext(ctx, "request completed", fields...)
	} else {
		p.logger.InfoContext(ctx, "request completed", fields...)
	}

	p.httpMetrics.Observe(ctx, c.Request.Method, route, status, latency)
}

// fail 分类错误，记录日志并写出响应
func (p *Pipeline) fail(c *gin.Context, err error) {
	outcome := Classify(err)
	ctx := c.Request.Context()

	switch outcome.Kind {
	case KindValidation:
		p.logger.WarnContext(ctx, "request rejected", clog.Error(err), clog.String("path", c.Request.URL.Path))
	default:
		p.logger.ErrorContext(ctx, "request failed", clog.Error(err),
			clog.String("error_type", fmt.Sprintf("%T", err)),
			clog.String("path", c.Request.URL.Path))
	}
	p.respond(c, outcome)
}

func (p *Pipeline) respond(c *gin.Context, outcome Outcome) {
	c.AbortWithStatusJSON(outcome.Status, outcome.Body)
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}
