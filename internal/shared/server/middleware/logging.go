package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legislens/internal/shared/telemetry"
)

// Context keys handlers may set for the request log line.
const (
	AnalysisIDKey     = "analysisId"
	DocumentFormatKey = "documentFormat"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"bytes_out":   c.Writer.Size(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if id := c.GetString(AnalysisIDKey); id != "" {
			fields["analysis_id"] = id
		}
		if format := c.GetString(DocumentFormatKey); format != "" {
			fields["format"] = format
		}
		telemetry.Info("request.complete", fields)
	}
}
