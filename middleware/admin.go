package middleware

import (
	"crypto/subtle"
	"net/http"

	"shop-service/models"

	"github.com/gin-gonic/gin"
)

// AdminKey guards the catalog admin API with a shared X-Admin-Key header.
// An empty key disables the admin API entirely.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-Admin-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Fail("unauthorized", "Invalid or missing admin key"))
			return
		}
		c.Next()
	}
}
