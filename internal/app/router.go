package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stashspace/stashspace/internal/auth"
	"github.com/stashspace/stashspace/internal/booking/inquiries"
	"github.com/stashspace/stashspace/internal/booking/offers"
	"github.com/stashspace/stashspace/internal/catalog"
	"github.com/stashspace/stashspace/internal/notify"
	"github.com/stashspace/stashspace/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	AuthService         *auth.Service
	AuthHandler         *auth.Handler
	InquiryHandler      *inquiries.Handler
	OfferHandler        *offers.Handler
	NotificationHandler *notify.Handler
	CatalogHandler      *catalog.Handler
	JobHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router. Everything except login and the
// health probe sits behind the bearer-token middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/auth/login", params.AuthHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.Middleware)

		r.Post("/auth/logout", params.AuthHandler.Logout)
		params.InquiryHandler.MountRoutes(r)
		params.OfferHandler.MountRoutes(r)
		params.NotificationHandler.MountRoutes(r)
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
