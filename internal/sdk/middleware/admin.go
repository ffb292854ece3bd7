package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const AdminKeyHeader = "X-Admin-Key"

// Admin admits back-office callers presenting the configured API key.
// An empty key closes the route entirely.
func Admin(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(AdminKeyHeader)
		if presented == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		if apiKey == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			abort(c, http.StatusForbidden, "forbidden", "Access denied")
			return
		}

		c.Next()
	}
}

// RequireSelf lets a request through only when the path parameter names the
// authenticated user. Must run after Authenticate.
func RequireSelf(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		if c.Param(param) != user.ID {
			abort(c, http.StatusForbidden, "forbidden", "Access denied")
			return
		}

		c.Next()
	}
}
