package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/linechat/internal/metrics"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OpsHandlers serves unauthenticated health and metrics endpoints.
type OpsHandlers struct {
	metrics *metrics.Metrics
}

// NewOpsHandlers creates a new ops handlers instance.
func NewOpsHandlers(m *metrics.Metrics) *OpsHandlers {
	return &OpsHandlers{metrics: m}
}

// Health reports liveness.
// GET /health
func (h *OpsHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Metrics writes counters in Prometheus text format.
// GET /metrics
func (h *OpsHandlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.Status(http.StatusOK)
	_ = h.metrics.WritePrometheus(c.Writer)
}
