package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"returns-backend/internal/domains/returns/model"
)

// RequireRoles rejects requests whose token role is not in the allowed set.
// Role checks per transition live in the service; this gate only fences
// whole route groups (admin listing, exports).
func RequireRoles(allowed ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleInterface, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Access denied: insufficient role",
			})
			c.Abort()
			return
		}

		role, ok := roleInterface.(string)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Access denied: insufficient role",
			})
			c.Abort()
			return
		}

		for _, r := range allowed {
			if model.Role(role) == r {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Access denied: insufficient role",
		})
		c.Abort()
	}
}
