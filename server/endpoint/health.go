// Package endpoint provides the health check handlers mounted next to the API.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/glowbook/observability"
)

// HealthChecker returns the aggregated health of the running components.
type HealthChecker func(ctx context.Context) *observability.ServiceHealth

// Health reports service health including component statuses. A degraded
// service still answers 200; a down service answers 503.
func Health(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := checker(c.Request.Context())
		httpStatus := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			httpStatus = http.StatusServiceUnavailable
		}
		c.JSON(httpStatus, gin.H{
			"status":     sh.Status,
			"service":    sh.Service,
			"version":    sh.Version,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": sh.Components,
		})
	}
}
