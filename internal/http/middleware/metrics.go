package middleware

import (
	"time"

	"dilemma_webapp/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics пишет длительность запроса по шаблону маршрута, а не по пути
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
