package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const accountKey = "account"

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			c.Abort()
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(accountKey, claims.Account)
		c.Next()
	}
}

// GetAccount returns the authenticated account from the gin context
func GetAccount(c *gin.Context) (string, bool) {
	value, exists := c.Get(accountKey)
	if !exists {
		return "", false
	}
	account, ok := value.(string)
	return account, ok && account != ""
}
