package handlers

import (
	"context"
	"net/http"
	"time"

	"dilemma_webapp/internal/logger"

	"github.com/gin-gonic/gin"
)

// GET /health/live
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "version": h.Version, "timestamp": time.Now().UTC()})
}

// GET /health/ready - 503, если хотя бы одна зависимость недоступна
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			logger.WithContext(ctx).Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks, "timestamp": time.Now().UTC()})
}
