package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ceyewan/warden/clog"
	"github.com/ceyewan/warden/xerrors"
)

// Next 调用链中的下一个阶段
type Next func(ctx context.Context) (any, error)

// Behavior 请求处理阶段：调用 next 继续，或直接返回结果/错误终止调用链
type Behavior func(ctx context.Context, req any, next Next) (any, error)

// chain 按顺序组合 behaviors，第一个最先执行
func chain(behaviors []Behavior, req any, final Next) Next {
	next := final
	for i := len(behaviors) - 1; i >= 0; i-- {
		b, n := behaviors[i], next
		next = func(ctx context.Context) (any, error) {
			return b(ctx, req, n)
		}
	}
	return next
}

// LoggingBehavior 处理前记录请求类型与内容，成功后记录完成标记。
// 内容序列化是尽力而为的，不会因为请求无法序列化而失败。
func LoggingBehavior(logger clog.Logger) Behavior {
	if logger == nil {
		logger = clog.Discard()
	}
	return func(ctx context.Context, req any, next Next) (any, error) {
		name := clog.TypeName(req)
		logger.InfoContext(ctx, "handling request", clog.String("request", name), clog.Payload("payload", req))

		start := time.Now()
		resp, err := next(ctx)
		if err != nil {
			return resp, err
		}

		logger.InfoContext(ctx, "request handled successfully",
			clog.String("request", name), clog.Duration("duration", time.Since(start)))
		return resp, nil
	}
}

// ValidationBehavior 按 validate 标签校验请求，失败时返回 *ValidationError 终止调用链
func ValidationBehavior(v *validator.Validate) Behavior {
	if v == nil {
		v = NewValidator()
	}
	return func(ctx context.Context, req any, next Next) (any, error) {
		if err := validateRequest(ctx, v, req); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

// NewValidator 创建以 json 标签命名字段的 validator
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func validateRequest(ctx context.Context, v *validator.Validate, req any) error {
	rv := reflect.ValueOf(req)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := v.StructCtx(ctx, req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !xerrors.As(err, &fieldErrs) {
		return xerrors.Wrap(err, "validate request")
	}

	fields := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Error: describe(fe)})
	}
	return &ValidationError{Fields: fields, cause: err}
}

// fieldPath 去掉根结构体名，"createTaskRequest.owner.email" -> "owner.email"
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with", "required_without":
		return "is required"
	case "min":
		return sizeMessage(fe.Kind(), "at least", p)
	case "max":
		return sizeMessage(fe.Kind(), "at most", p)
	case "len":
		return sizeMessage(fe.Kind(), "exactly", p)
	case "gt":
		return "must be greater than " + p
	case "gte":
		return "must be greater than or equal to " + p
	case "lt":
		return "must be less than " + p
	case "lte":
		return "must be less than or equal to " + p
	case "oneof":
		return "must be one of [" + p + "]"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "uuid", "uuid4", "uuid7":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed the '%s' rule", fe.Tag())
	}
}

func sizeMessage(kind reflect.Kind, bound, param string) string {
	switch kind {
	case reflect.String:
		return fmt.Sprintf("must be %s %s characters long", bound, param)
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("must contain %s %s items", bound, param)
	default:
		return fmt.Sprintf("must be %s %s", bound, param)
	}
}
