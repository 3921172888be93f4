package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

// StatusCoder 响应类型实现它以指定 2xx 状态码，默认 200
type StatusCoder interface {
	StatusCode() int
}

// HandlerFunc 业务处理函数
type HandlerFunc[Req, Resp any] func(ctx context.Context, req *Req) (Resp, error)

// Handle 把业务处理函数包装为 gin.HandlerFunc。
//
// 请求体按 JSON 解码为 Req（空请求体得到零值），经过 Behavior 链后调用 h。
// 成功时写出 JSON 响应；失败时按 Classify 写出 400 或 500。
func Handle[Req, Resp any](p *Pipeline, h HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(Req)
		if err := decodeBody(c.Request, req); err != nil {
			// 请求体无法解码时 Behavior 链不会执行，在这里补记请求日志
			p.logger.InfoContext(c.Request.Context(), "handling request",
				clog.String("request", clog.TypeName(req)), clog.Error(err))
			c.Error(err) //nolint:errcheck
			p.fail(c, err)
			return
		}

		final := func(ctx context.Context) (any, error) {
			return h(ctx, req)
		}
		resp, err := chain(p.behaviors, req, final)(c.Request.Context())
		if err != nil {
			c.Error(err) //nolint:errcheck
			p.fail(c, err)
			return
		}

		status := http.StatusOK
		if sc, ok := resp.(StatusCoder); ok && IsSuccess(sc.StatusCode()) {
			status = sc.StatusCode()
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, resp)
	}
}

// decodeBody 解码 JSON 请求体。语法错误归为 field "body"，类型错误归到对应字段。
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || xerrors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if xerrors.As(err, &typeErr) && typeErr.Field != "" {
		return &ValidationError{
			Fields: []FieldError{{Field: typeErr.Field, Error: "must be " + kindName(typeErr.Type)}},
			cause:  xerrors.Mark(err, ErrMalformedBody),
		}
	}

	msg := "must be valid JSON"
	var syntaxErr *json.SyntaxError
	if xerrors.As(err, &syntaxErr) {
		msg = fmt.Sprintf("must be valid JSON (syntax error at offset %d)", syntaxErr.Offset)
	}
	return &ValidationError{
		Fields: []FieldError{{Field: "body", Error: msg}},
		cause:  xerrors.Mark(err, ErrMalformedBody),
	}
}

func kindName(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Map, reflect.Struct:
		return "an object"
	default:
		return "a valid value"
	}
}
