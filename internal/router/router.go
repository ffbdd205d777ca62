package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/auth"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/handler"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	mw "github.com/parisxmas/OxiDB/OxiLeads/internal/middleware"
)

func New(
	jwtSecret string,
	log *logging.Logger,
	authH *handler.AuthHandler,
	webhookH *handler.WebhookHandler,
	leadH *handler.LeadHandler,
	healthH *handler.HealthHandler,
	metrics http.Handler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery(log))
	r.Use(mw.Logger(log))

	r.Get("/healthz", healthH.Health)
	r.Method(http.MethodGet, "/metrics", metrics)

	// Form webhooks carry their own shared-secret check.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/phase-one", webhookH.PhaseOne)
		r.Post("/phase-two", webhookH.PhaseTwo)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authH.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))

			r.Get("/auth/me", authH.Me)

			// Leads
			r.Get("/leads/{leadId}", leadH.Get)
			r.Post("/leads/{leadId}/retry", leadH.Retry)

			// Dry runs
			r.Post("/preview/{phase}", leadH.Preview)
		})
	})

	return r
}
