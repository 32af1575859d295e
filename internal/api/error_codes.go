// internal/api/error_codes.go
package api

// API错误代码常量. Codes raised by services come from AppError.Code.
const (
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorInvalidBody   = "INVALID_BODY"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorForbidden     = "FORBIDDEN"
	ErrorRateLimited   = "RATE_LIMITED"

	ErrorLLMConfigInvalid = "LLM_CONFIG_INVALID"
)
