package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics serves the Prometheus exposition format
func (h *Handlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// MetricsSummary returns a JSON summary of the collected metrics
func (h *Handlers) MetricsSummary(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"summary":   h.metrics.Snapshot(),
		"sessions":  h.sessions.List(),
	})
}
