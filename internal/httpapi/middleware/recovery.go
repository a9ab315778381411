package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/log"
)

// Recovery recovers a panicking handler, logs it, and responds 500 instead
// of letting the process die on one bad request, grounded on axonhub's
// middleware.Recovery().
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "panic recovered", log.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"type": "internal_error", "message": "internal server error"},
				})
			}
		}()

		c.Next()
	}
}
