package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie carrying the session token for browser
// clients. API clients send the same token as a Bearer header.
const SessionCookie = "_user_session"

const (
	currentUserKey  = "currentUser"
	sessionTokenKey = "sessionToken"

	errUnauthorized = "Unauthorized"
)

// sessionResolver is the subset of the accounts usecase the middleware
// needs. Defined here (point of use) so tests can inject a fake.
type sessionResolver interface {
	GetUserBySessionToken(ctx context.Context, raw string) (*domain.User, error)
}

// Auth resolves the session token from the Authorization header or the
// session cookie and sets the current user in the gin context.
func Auth(accounts sessionResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		user, err := accounts.GetUserBySessionToken(c.Request.Context(), raw)
		if err != nil {
			if !errors.Is(err, domain.ErrTokenInvalid) {
				logger.ErrorContext(c.Request.Context(), "resolve session token", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(currentUserKey, user)
		c.Set(sessionTokenKey, raw)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// CurrentUser returns the user set by Auth, or nil outside it.
func CurrentUser(c *gin.Context) *domain.User {
	user, _ := c.Value(currentUserKey).(*domain.User)
	return user
}

// SessionToken returns the raw session token the current request
// authenticated with.
func SessionToken(c *gin.Context) string {
	raw, _ := c.Value(sessionTokenKey).(string)
	return raw
}
