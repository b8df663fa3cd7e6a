package handlers

import (
	"context"
	"net/http"

	"github.com/GregMSThompson/insight-portal/internal/dto"
	"github.com/GregMSThompson/insight-portal/internal/response"
)

type healthService interface {
	Check(ctx context.Context) dto.Health
}

type healthHandlers struct {
	ResponseHandler response.ResponseHandler
	HealthSvc       healthService
}

func NewHealthHandlers(deps *Deps) *healthHandlers {
	return &healthHandlers{
		ResponseHandler: deps.ResponseHandler,
		HealthSvc:       deps.HealthSvc,
	}
}

func (h *healthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.HealthSvc.Check(r.Context())
	status := http.StatusOK
	if health.Status != dto.HealthOK {
		status = http.StatusServiceUnavailable
	}
	h.ResponseHandler.WriteSuccess(w, r, status, health)
}
