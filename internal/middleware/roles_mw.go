package middleware

import (
	"pettycash/internal/model"

	"github.com/gin-gonic/gin"
)

// RoleMiddleware lets the request through only when authorize accepts the current user.
// Otherwise denied is called and the chain is aborted.
func RoleMiddleware(authorize func(*model.User) error, denied func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorize(CurrentUser(c)); err != nil {
			denied(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
