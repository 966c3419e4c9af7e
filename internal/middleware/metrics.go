package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/service"
)

const (
	groupSystem    = "system"
	groupUnmatched = "unmatched"
)

// Metrics records request count and latency per route group and route template.
// Requests that match no route share one label so raw URLs never become series.
func Metrics(metricsSvc *service.MetricsService, apiPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		group := routeGroup(apiPrefix, path)
		if path == "" {
			path = groupUnmatched
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, group, path, c.Writer.Status(), time.Since(start))
	}
}

// routeGroup names the API area of a route template: "papers", "archive", "admin/users" and so on.
// Routes outside the API prefix, such as /health and /metrics, belong to "system".
func routeGroup(apiPrefix, fullPath string) string {
	if fullPath == "" {
		return groupUnmatched
	}
	prefix := strings.TrimRight(apiPrefix, "/")
	if prefix != "" && fullPath != prefix && !strings.HasPrefix(fullPath, prefix+"/") {
		return groupSystem
	}
	segments := strings.Split(strings.Trim(strings.TrimPrefix(fullPath, prefix), "/"), "/")
	if segments[0] == "" {
		return groupSystem
	}
	if segments[0] == "admin" && len(segments) > 1 && !strings.HasPrefix(segments[1], ":") {
		return "admin/" + segments[1]
	}
	return segments[0]
}
