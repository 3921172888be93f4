package metrics

import "strconv"

// 通用标签名
const (
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatus      = "status"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
	LabelErrorType   = "error_type"
)

const (
	OperationHTTPServer = "http.server"

	OutcomeSuccess = "success"
	OutcomeError   = "error"

	// UnknownRoute 未命中路由时的 route 标签，避免原始路径导致高基数
	UnknownRoute = "unknown"
)

// HTTPStatusClass 返回 1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 将 HTTP 状态码映射为 success / error
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}
