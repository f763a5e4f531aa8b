package middleware

import (
	"library-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// RequireRoles lets the request through when the role set by AuthMiddleware is one of roles
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if !ok {
			response.Forbidden(c, "access denied: role required")
			c.Abort()
			return
		}

		name, _ := role.(string)
		if _, ok := allowed[name]; !ok {
			response.Forbidden(c, "access denied: role "+name+" not allowed")
			c.Abort()
			return
		}

		c.Next()
	}
}
