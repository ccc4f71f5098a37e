package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
)

// Recovery recovers from panics, logs the stack and answers with the
// standard INTERNAL_ERROR envelope.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Panic recovered", map[string]interface{}{
					"error":               fmt.Sprintf("%v", rec),
					"stack":               string(debug.Stack()),
					"path":                c.Request.URL.Path,
					"method":              c.Request.Method,
					logger.FieldRequestID: c.GetString(RequestIDKey),
				})
				appErr := errors.Internal(fmt.Errorf("panic: %v", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, appErr.ToResponse())
			}
		}()
		c.Next()
	}
}
