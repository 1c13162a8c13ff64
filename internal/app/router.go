package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/billing"
	"github.com/labkeeper/labkeeper/internal/booking"
	"github.com/labkeeper/labkeeper/internal/equipment"
	"github.com/labkeeper/labkeeper/internal/waitlist"
	"github.com/labkeeper/labkeeper/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthzMiddleware  authz.Middleware
	EquipmentHandler *equipment.Handler
	BookingHandler   *booking.Handler
	BillingHandler   *billing.Handler
	WaitlistHandler  *waitlist.Handler
	JobsHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with LabKeeper defaults.
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthzMiddleware.WithPrincipal)

		r.Route("/equipment", params.EquipmentHandler.MountRoutes)
		r.Route("/reservations", params.BookingHandler.MountRoutes)
		r.Route("/usage", params.BillingHandler.MountRoutes)
		r.Route("/waitlist", params.WaitlistHandler.MountRoutes)

		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
