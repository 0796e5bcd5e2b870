package middleware

import (
	"strings"

	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer access token, rejects revoked
// tokens, and stores the authenticated user id on the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.Unauthorized(c, "Missing or invalid token")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		if services.IsTokenBlacklisted(tokenString) {
			utils.Unauthorized(c, "Token has been invalidated")
			c.Abort()
			return
		}

		userID, err := services.ValidateToken(tokenString, "access")
		if err != nil {
			utils.TrackAuthAttempt("failure", "token_validation")
			utils.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("access_token", tokenString)
		c.Next()
	}
}
