package stock

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agape-erp/agape-erp/internal/platform/httpx"
)

// Handler serves the stock statistics endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statistics", h.Statistics)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.logger.Error("load stock statistics failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "failed to load stock statistics")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
