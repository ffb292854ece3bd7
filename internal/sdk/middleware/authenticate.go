// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/sdk/models"
)

const (
	UserKey  = "auth_user"
	TokenKey = "auth_token"
)

var ErrNoUser = errors.New("no authenticated user in context")

// SessionValidator resolves a bearer token to its user.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (models.User, error)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate rejects requests without a live session and stores the
// session's user in the gin context.
func Authenticate(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "missing_authorization_header", "Authentication required")
			return
		}

		token, ok := BearerToken(header)
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid_authorization_header", "Authentication required")
			return
		}

		user, err := v.ValidateSession(c.Request.Context(), token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid_session", "Invalid session")
			return
		}

		c.Set(UserKey, user)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// GetUser returns the user stored by Authenticate.
func GetUser(c *gin.Context) (models.User, error) {
	v, ok := c.Get(UserKey)
	if !ok {
		return models.User{}, ErrNoUser
	}
	user, ok := v.(models.User)
	if !ok {
		return models.User{}, ErrNoUser
	}
	return user, nil
}

// GetToken returns the bearer token stored by Authenticate.
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
