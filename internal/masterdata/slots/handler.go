package slots

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agape-erp/agape-erp/internal/platform/httpx"
)

// Handler serves the slot mapping lookup.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers slot routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list slot mappings failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "failed to load slot mappings")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": mappings})
}
