package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"pettycash/internal/model"
	"pettycash/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	AuthUserKey = "authUser"
	AuthRoleKey = "authRole"
)

// Authenticator resolves a session token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// SessionAuthMiddleware reads the JWT session cookie and loads the current user.
// Requests without a valid session are redirected to the login page.
func SessionAuthMiddleware(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			redirectToLogin(c)
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidSession) {
				slog.ErrorContext(c.Request.Context(), "session lookup failed", "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetCookie(cookieName, "", -1, "/", "", false, true)
			redirectToLogin(c)
			return
		}

		// Set user information in context
		c.Set(AuthUserKey, user)
		c.Set(AuthRoleKey, user.Role)

		c.Next()
	}
}

// CurrentUser returns the user stored by SessionAuthMiddleware, or nil
func CurrentUser(c *gin.Context) *model.User {
	v, exists := c.Get(AuthUserKey)
	if !exists {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

func redirectToLogin(c *gin.Context) {
	target := "/login"
	if c.Request.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}
