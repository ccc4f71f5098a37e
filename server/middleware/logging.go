package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/logger"
)

// RequestLogger logs every request with method, path, status code and
// duration. Health check paths are skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isHealthEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": latency.Milliseconds(),
			"client":      c.ClientIP(),
		}
		if id := c.GetString(RequestIDKey); id != "" {
			fields[logger.FieldRequestID] = id
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}
		if latency > 500*time.Millisecond {
			fields["slow"] = true
		}
		logByStatus(log, fields, status)
	}
}

func isHealthEndpoint(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// logByStatus logs request fields at the level matching the HTTP status.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
