package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agape-erp/agape-erp/internal/auth"
	"github.com/agape-erp/agape-erp/internal/dispatch"
	"github.com/agape-erp/agape-erp/internal/masterdata/items"
	"github.com/agape-erp/agape-erp/internal/masterdata/partners"
	"github.com/agape-erp/agape-erp/internal/masterdata/slots"
	"github.com/agape-erp/agape-erp/internal/observability"
	"github.com/agape-erp/agape-erp/internal/stock"
	"github.com/agape-erp/agape-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Pool     *pgxpool.Pool
	Validate *validator.Validate

	AuthService *auth.Service
	AuthHandler *auth.Handler

	SlotsRepo    *slots.Repository
	PartnersRepo partners.Repository
	ItemsRepo    items.Repository

	PartnersHandler *partners.Handler
	ItemsHandler    *items.Handler
	SlotsHandler    *slots.Handler
	StockHandler    *stock.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with Agape defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		// Everything below requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(params.AuthService.RequireAuth)

			dispatch.MountRoutes(r, params.Pool, params.Logger, params.Validate,
				params.SlotsRepo, params.PartnersRepo, params.ItemsRepo)

			r.Route("/masterdata", func(r chi.Router) {
				r.Route("/partners", params.PartnersHandler.MountRoutes)
				r.Route("/items", params.ItemsHandler.MountRoutes)
				r.Route("/slots", params.SlotsHandler.MountRoutes)
			})

			r.Route("/stock", params.StockHandler.MountRoutes)

			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
