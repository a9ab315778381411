package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// WithTimeout bounds the request context to d, grounded on axonhub's
// middleware.WithTimeout applied per route group (plain routes get the
// shorter RequestTimeout; chat/inference routes get the longer
// ChatRequestTimeout). d <= 0 leaves the context untouched.
func WithTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
