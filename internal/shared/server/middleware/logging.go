package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resumegenie/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": c.GetString("statusTransition"),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_email":        UserEmailFromContext(c),
			"is_authenticated":  IsAuthenticated(c),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		}
		if id := c.GetString("analysisId"); id != "" {
			fields["analysis_id"] = id
		}
		if authErr := c.GetString("authError"); authErr != "" {
			fields["auth_error"] = authErr
		}
		telemetry.Info("request.complete", fields)
	}
}
