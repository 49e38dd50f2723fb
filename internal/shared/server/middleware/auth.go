package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumegenie/internal/shared/auth"
	"resumegenie/internal/shared/server/respond"
)

const (
	userEmailKey     = "userEmail"
	authenticatedKey = "isAuthenticated"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth resolves an optional identity from the bearer token. Requests without a
// usable token continue anonymously; protected routes add RequireUser.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Set(authenticatedKey, false)
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" || verifier == nil {
			c.Next()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.Set("authError", err.Error())
			c.Next()
			return
		}

		c.Set(userEmailKey, claims.Sub)
		c.Set(authenticatedKey, true)
		c.Next()
	}
}

// RequireUser rejects requests that carry no valid identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserEmailFromContext(c) == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		c.Next()
	}
}

// UserEmailFromContext fetches the email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}

// IsAuthenticated reports whether the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return UserEmailFromContext(c) != ""
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}
