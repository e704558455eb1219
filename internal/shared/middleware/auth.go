package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/model"
	"returns-backend/pkg/jwt"
)

// AuthMiddleware verifies the bearer token and stores the acting identity
func AuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Read token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		// 2. Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(401, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		// 3. Verify and parse claims
		claims, err := manager.ValidateAccessToken(parts[1])
		if err != nil {
			c.JSON(401, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		// 4. Extract userID from claims
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(401, gin.H{"error": "invalid user ID in token"})
			c.Abort()
			return
		}

		// 5. Role is mandatory; every token carries one
		if !model.Role(claims.Role).IsValid() {
			c.JSON(401, gin.H{"error": "invalid role in token"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// ActorFromContext rebuilds the acting identity set by AuthMiddleware
func ActorFromContext(c *gin.Context) (model.Actor, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return model.Actor{}, false
	}
	id, ok := userID.(uuid.UUID)
	if !ok {
		return model.Actor{}, false
	}
	role, ok := c.Get("role")
	if !ok {
		return model.Actor{}, false
	}
	roleStr, ok := role.(string)
	if !ok {
		return model.Actor{}, false
	}
	return model.Actor{ID: id, Role: model.Role(roleStr)}, true
}
