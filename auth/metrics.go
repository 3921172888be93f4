package auth

// MetricTokensValidated Token 验证计数，标签: status, error_type
const MetricTokensValidated = "auth_tokens_validated_total"
