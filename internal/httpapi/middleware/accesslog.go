package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/log"
)

// AccessLog logs one structured line per request carrying status, method,
// path and latency, independent of moderation outcomes (spec §4.1 "emits
// structured access log"), grounded on axonhub's middleware/access_log.go.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()

		var errMsgs []string
		for _, e := range c.Errors {
			errMsgs = append(errMsgs, e.Error())
		}

		status := c.Writer.Status()

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}

		if len(errMsgs) > 0 {
			fields = append(fields, log.Any("errors", errMsgs))
		}

		if status >= 500 || len(errMsgs) > 0 {
			log.Error(ctx, "[ACCESS]", fields...)
		} else {
			log.Info(ctx, "[ACCESS]", fields...)
		}
	}
}
