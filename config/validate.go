package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ceyewan/warden/xerrors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator 以 mapstructure 标签命名字段，错误信息与配置 key 一致。
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct 按 validate 标签校验配置结构体，所有失败项合并为一个错误。
func ValidateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !xerrors.As(err, &fieldErrs) {
		return xerrors.Wrap(ErrValidationFailed, err.Error())
	}

	var c xerrors.Collector
	for _, fe := range fieldErrs {
		c.Collect(fmt.Errorf("%s: %s", configKey(fe.Namespace()), describe(fe)))
	}
	return xerrors.Wrap(ErrValidationFailed, c.Err().Error())
}

// configKey 去掉根结构体名，得到 "registry.driver" 形式的 key
func configKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "hostname_port":
		return "must be host:port"
	default:
		return "failed on " + fe.Tag()
	}
}
