package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/louisbranch/onepaper/internal/platform/metrics"
)

// PrometheusMiddleware records request counts and durations per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) requireAdmin(c *gin.Context) {
	if s.cfg.AdminKey == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "admin endpoints are disabled"})
		return
	}
	provided := c.GetHeader(AdminKeyHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid admin key"})
		return
	}
	c.Next()
}
