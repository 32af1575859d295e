// internal/api/auth_middleware.go
package api

import (
	"crypto/subtle"
	"strings"

	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	userKey   = "user"
	userIDKey = "user_id"

	adminTokenHeader = "X-Admin-Token"
)

// AuthMiddleware requires a valid bearer token and loads the caller into
// the context. Websocket clients may pass the token as ?token= instead.
func AuthMiddleware(users *services.UserService, rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			rh.Unauthorized(c, "Not authenticated")
			return
		}

		user, err := users.Authenticate(c.Request.Context(), token)
		if err != nil {
			rh.Error(c, err)
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// AdminMiddleware restricts process-wide settings to the operator holding
// adminToken. With no token configured the guarded routes are closed.
func AdminMiddleware(adminToken string, rh *ResponseHelper) gin.HandlerFunc {
	expected := []byte(adminToken)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			rh.Forbidden(c, "Runtime configuration is disabled")
			return
		}
		given := []byte(strings.TrimSpace(c.GetHeader(adminTokenHeader)))
		if subtle.ConstantTimeCompare(given, expected) != 1 {
			rh.Forbidden(c, "Admin token required")
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from a "Bearer {token}" header value.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// currentUser returns the authenticated caller, or nil on public routes.
func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
