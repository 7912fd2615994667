package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIError is the JSON error body every handler in this package returns.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, APIError{Code: code, Message: message})
	c.Abort()
}

// requireAuth guards the admin API: bearer-token only (nfig has no user
// database, API keys, or cookie sessions to check against), admin-scoped.
func requireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		claims, err := verifyToken(secret, token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}
		c.Set("user", claims.User)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}

func currentUser(c *gin.Context) string {
	if u, ok := c.Get("user"); ok {
		if s, ok := u.(string); ok {
			return s
		}
	}
	return ""
}
