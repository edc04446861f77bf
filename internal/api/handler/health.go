package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ActiveCounter reports how many jobs are queued or running.
type ActiveCounter interface {
	Active() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	jobs ActiveCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(jobs ActiveCounter) *HealthHandler {
	return &HealthHandler{jobs: jobs}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.jobs != nil {
		resp["active_jobs"] = h.jobs.Active()
	}
	c.JSON(http.StatusOK, resp)
}
