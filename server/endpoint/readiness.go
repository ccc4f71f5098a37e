package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/observability"
)

// Readiness answers 200 unless a component is down. Serving from the
// fallback provider still counts as ready.
func Readiness(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := checker(c.Request.Context())
		status := "ready"
		httpStatus := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":    status,
			"service":   sh.Service,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
