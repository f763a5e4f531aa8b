package middleware

import (
	"strings"

	"library-backend/internal/shared/response"
	"library-backend/pkg/jwt"
	"library-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// AuthMiddleware verifies the staff JWT and stores the user id and role on the context
func AuthMiddleware(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		// 2. Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		// 3. Verify and parse JWT
		claims, err := tokens.ValidateAccessToken(parts[1])
		if err != nil {
			logger.Debug("rejected token: " + err.Error())
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		// 4. user_id must be a uuid
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "invalid user ID in token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// UserID returns the authenticated staff id, nil when the route is not behind AuthMiddleware
func UserID(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
