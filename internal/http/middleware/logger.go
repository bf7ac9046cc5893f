package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		ctx := c.Request.Context()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
		}
		if req, ok := CallFromContext(c); ok && req.Context.ActingUserID() != "" {
			attrs = append(attrs, "user_id", req.Context.ActingUserID())
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "call failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "call rejected", attrs...)
		default:
			slog.DebugContext(ctx, "call", attrs...)
		}
	}
}
