package pipeline

import (
	"net/http"
	"strings"

	"github.com/ceyewan/warden/xerrors"
)

// UnexpectedErrorMessage 未分类错误返回给客户端的固定信息
const UnexpectedErrorMessage = "An unexpected error occurred."

var (
	// ErrMalformedBody 请求体不是合法 JSON，以 field "body" 的 400 返回
	ErrMalformedBody = xerrors.New("pipeline: malformed request body")

	// ErrPolicyRequired 未提供认证策略
	ErrPolicyRequired = xerrors.New("pipeline: auth policy is required")
)

// Kind 请求结果分类
type Kind string

const (
	KindSuccess      Kind = "success"
	KindValidation   Kind = "validation"
	KindUnclassified Kind = "unclassified"
)

// Outcome 一次请求的分类结果
type Outcome struct {
	Kind   Kind
	Status int
	Body   any
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationErrorBody 400 响应体
type ValidationErrorBody struct {
	Errors []FieldError `json:"errors"`
}

// ErrorBody 500 等非字段错误的响应体
type ErrorBody struct {
	Error string `json:"error"`
}

// ValidationError 字段级校验失败，映射为 400。handler 也可以直接返回它。
type ValidationError struct {
	Fields []FieldError
	cause  error
}

// NewValidationError 创建字段校验错误
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Error
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Classify 把 handler 或中间件返回的错误映射为 HTTP 状态码与响应体。
//
// 只有 *ValidationError（包括请求体解析失败）会向客户端暴露细节，其余一律为不透明的 500。
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindSuccess, Status: http.StatusOK}
	}

	var verr *ValidationError
	if xerrors.As(err, &verr) {
		fields := verr.Fields
		if fields == nil {
			fields = []FieldError{}
		}
		return Outcome{
			Kind:   KindValidation,
			Status: http.StatusBadRequest,
			Body:   ValidationErrorBody{Errors: fields},
		}
	}

	return Outcome{
		Kind:   KindUnclassified,
		Status: http.StatusInternalServerError,
		Body:   ErrorBody{Error: UnexpectedErrorMessage},
	}
}

// IsSuccess 状态码是否为 2xx
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
