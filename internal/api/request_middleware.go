// internal/api/request_middleware.go
package api

import (
	"time"

	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware tags each request with an id, reusing the client's
// X-Request-ID when present.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = ksuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggingMiddleware logs one line per request and records request metrics.
func LoggingMiddleware(metrics *utils.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if metrics != nil {
			metrics.RecordAPIRequest(route, c.Request.Method, status, latency)
		}

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"request_id": c.GetString(requestIDKey),
			"client_ip":  c.ClientIP(),
		}
		if userID := currentUserID(c); userID != "" {
			fields["user_id"] = userID
		}

		logger := utils.GetLogger()
		switch {
		case status >= 500:
			logger.Error("request", fields)
		case status >= 400:
			logger.Warn("request", fields)
		default:
			logger.Info("request", fields)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 envelope.
func RecoveryMiddleware(rh *ResponseHelper) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		utils.GetLogger().Error("panic recovered", map[string]interface{}{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(requestIDKey),
			"panic":      recovered,
		})
		rh.InternalError(c, "Internal server error")
	})
}
