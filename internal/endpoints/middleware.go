package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airwave/internal/config"
)

// CORSMiddleware allows the static frontend to call the API from any origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AdminAuthMiddleware checks the shared admin token in X-Admin-Token.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.AdminToken == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "ADMIN_TOKEN not configured"})
			return
		}
		if c.GetHeader("X-Admin-Token") != config.AdminToken {
			c.AbortWithStatusJSON(http.StatusForbidden,
				gin.H{"error": "Invalid admin token"})
			return
		}
		c.Next()
	}
}
