package endpoint

import "github.com/gin-gonic/gin"

// Register mounts /health, /health/live and /health/ready on r.
func Register(r gin.IRouter, serviceName string, checker HealthChecker) {
	r.GET("/health", Health(checker))
	r.GET("/health/live", Liveness(serviceName))
	r.GET("/health/ready", Readiness(checker))
}
