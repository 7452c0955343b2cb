package handler

import (
	"net/http"

	"wacampaign/internal/service"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	healthService HealthService
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(healthService HealthService) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// HandleHealth handles GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.healthService.CheckHealth(r.Context())

	status := http.StatusOK
	switch healthStatus.Status {
	case service.StatusHealthy:
	case service.StatusDegraded, service.StatusUnhealthy:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	WriteJSON(w, status, healthStatus)
}
