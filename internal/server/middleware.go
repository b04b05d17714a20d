package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stywzn/qdashboard/internal/logger"
)

// LoggerMiddleware logs each request once, with any gin errors attached.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, logger.String("query", q))
		}

		if len(c.Errors) > 0 {
			fields = append(fields, logger.Strings("errors", c.Errors.Errors()))
			log.Error("HTTP request with errors", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

// CORSMiddleware allows the dashboard frontend to call the API from any
// origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// MetricsMiddleware records request count and latency by route template.
func MetricsMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
