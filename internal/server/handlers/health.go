package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/tgbridge/pkg/api"
)

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		version: version,
	}
}

// Health обрабатывает GET /health
// Health check endpoint для мониторинга
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	version := h.version
	if version == "" {
		version = "dev"
	}

	resp := api.HealthResponse{
		Status:  "ok",
		Version: version,
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
