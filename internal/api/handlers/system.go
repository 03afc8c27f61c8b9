package handlers

import (
	"net/http"

	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
)

// SystemHandler serves health and version endpoints.
type SystemHandler struct {
	service *service.SystemService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(service *service.SystemService) *SystemHandler {
	return &SystemHandler{service: service}
}

// Health reports whether the service and its database are up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(); err != nil {
		response.RespondError(w, http.StatusServiceUnavailable, "database unavailable", err.Error())
		return
	}
	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version reports the running build's version.
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	response.RespondJSON(w, http.StatusOK, h.service.GetVersionInfo())
}
