package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prisvakt/compliance-service/internal/database"
)

const healthTimeout = 2 * time.Second

// HealthResponse reports the state of the service dependencies
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis,omitempty"`
}

// HealthCheck handles the health check endpoint. A lost database connection
// fails the check; a lost Redis only degrades it, since locks and the widget
// cache fall back to no-ops.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "not configured"}

	if database.Pool() != nil {
		if err := database.Status(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "connected"
	}

	if deps.RedisPing != nil {
		resp.Redis = "connected"
		if err := deps.RedisPing(ctx); err != nil {
			resp.Status = "degraded"
			resp.Redis = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}
