package dispatch

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agape-erp/agape-erp/internal/shared"
)

// MountRoutes wires the dispatch booking engine under the given router.
// The slot, partner and item directories come from the masterdata packages
// so the engine never owns master-data queries.
func MountRoutes(
	r chi.Router,
	pool *pgxpool.Pool,
	logger *slog.Logger,
	validate *validator.Validate,
	slots SlotDirectory,
	partners PartnerDirectory,
	items ItemDirectory,
) {
	repo := NewRepository(pool)
	audit := shared.NewAuditLogger(pool)
	idem := shared.NewIdempotencyStore(pool)
	svc := NewService(repo, slots, partners, items, audit, idem, logger)
	handler := NewHandler(logger, svc, validate)

	r.Route("/dispatches", func(r chi.Router) {
		handler.MountRoutes(r)
	})
}
