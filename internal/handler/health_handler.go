package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	service string
	checks  []HealthCheck
	logger  *zap.Logger
}

func NewHealthHandler(service string, logger *zap.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, logger: logger}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	code := http.StatusOK
	status := gin.H{
		"status":  true,
		"service": h.service,
	}
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("check", chk.Name), zap.Error(err))
			status[chk.Name] = "unhealthy"
			status["status"] = false
			code = http.StatusServiceUnavailable
			continue
		}
		status[chk.Name] = "healthy"
	}
	c.JSON(code, status)
}
