// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope used for error bodies.
type APIResponse struct {
	Success   bool      `json:"success"`
	Error     *APIError `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper writes handler responses. Success bodies are the resource
// itself; failures use the APIResponse envelope.
type ResponseHelper struct {
	metrics *utils.AppMetrics
}

func NewResponseHelper(metrics *utils.AppMetrics) *ResponseHelper {
	return &ResponseHelper{metrics: metrics}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message writes a {"message": ...} body.
func (rh *ResponseHelper) Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Error maps err onto a status and error code. Errors that are not
// AppErrors are reported as 500 without their text.
func (rh *ResponseHelper) Error(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		status := appErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			rh.logFailure(c, err)
		}
		rh.write(c, status, appErr.Code, appErr.Message, "")
		return
	}
	rh.logFailure(c, err)
	rh.write(c, http.StatusInternalServerError, ErrorInternalError, "Internal server error", "")
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.write(c, http.StatusBadRequest, ErrorBadRequest, message, first(details))
}

// InvalidBody reports a request body that failed to decode.
func (rh *ResponseHelper) InvalidBody(c *gin.Context, err error) {
	rh.write(c, http.StatusBadRequest, ErrorInvalidBody, "Invalid request body", err.Error())
}

// Unauthorized 401错误响应
func (rh *ResponseHelper) Unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	rh.write(c, http.StatusUnauthorized, ErrorUnauthorized, message, "")
}

// Forbidden 403错误响应
func (rh *ResponseHelper) Forbidden(c *gin.Context, message string) {
	rh.write(c, http.StatusForbidden, ErrorForbidden, message, "")
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string) {
	rh.write(c, http.StatusNotFound, ErrorNotFound, message, "")
}

// TooManyRequests 429错误响应
func (rh *ResponseHelper) TooManyRequests(c *gin.Context) {
	rh.write(c, http.StatusTooManyRequests, ErrorRateLimited, "Rate limit exceeded", "")
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string) {
	rh.write(c, http.StatusInternalServerError, ErrorInternalError, message, "")
}

func (rh *ResponseHelper) write(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: sanitizeErrorMessage(message),
			Details: details,
		},
		Timestamp: time.Now().UTC(),
		RequestID: getRequestID(c),
	})
}

func (rh *ResponseHelper) logFailure(c *gin.Context, err error) {
	if rh.metrics != nil {
		rh.metrics.RecordError("internal", "api")
	}
	utils.GetLogger().Error("request failed", map[string]interface{}{
		"path":       c.FullPath(),
		"method":     c.Request.Method,
		"request_id": getRequestID(c),
		"error":      err,
	})
}

// sanitizeErrorMessage keeps client-facing messages on a single short line.
func sanitizeErrorMessage(message string) string {
	message = strings.TrimSpace(strings.ReplaceAll(message, "\n", " "))
	if len(message) > 300 {
		message = message[:300]
	}
	return message
}

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
