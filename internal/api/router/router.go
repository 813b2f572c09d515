package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicops/visitdesk/internal/auth"
	httpmiddleware "github.com/clinicops/visitdesk/internal/http/middleware"
	"github.com/clinicops/visitdesk/internal/reporting"
	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/internal/visits"
	"github.com/clinicops/visitdesk/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	AuthService        *auth.Service
	AuthHandler        *auth.Handler
	VisitsHandler      *visits.Handler
	DashboardHandler   *reporting.Handler
	UserRepo           users.Repository
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-IP rate limit on the credential endpoints. Zero disables it.
	AuthRateRPS   float64
	AuthRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Route("/auth", func(r chi.Router) {
		if cfg.AuthRateRPS > 0 {
			r.Use(httpmiddleware.RateLimit(cfg.AuthRateRPS, cfg.AuthRateBurst))
		}
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/logout", cfg.AuthHandler.Logout)
	})

	// Authenticated API
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.Authenticate(cfg.AuthService, cfg.UserRepo))

		api.Get("/auth/me", cfg.AuthHandler.Me)

		api.Route("/visits", func(r chi.Router) {
			r.With(httpmiddleware.RequireRole(users.RolePatient)).Get("/doctors", cfg.VisitsHandler.ListDoctors)
			r.With(httpmiddleware.RequireRole(users.RolePatient)).Post("/", cfg.VisitsHandler.Book)
			r.With(httpmiddleware.RequireRole(users.RolePatient)).Get("/my-visits", cfg.VisitsHandler.MyVisits)

			r.With(httpmiddleware.RequireRole(users.RoleDoctor)).Get("/active", cfg.VisitsHandler.ActiveVisit)
			r.With(httpmiddleware.RequireRole(users.RoleDoctor)).Get("/pending", cfg.VisitsHandler.PendingVisits)

			r.With(httpmiddleware.RequireRole(users.RoleFinance)).Get("/", cfg.VisitsHandler.AllVisits)
			r.With(httpmiddleware.RequireRole(users.RoleFinance)).Get("/search", cfg.VisitsHandler.Search)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(httpmiddleware.RequireRole(users.RoleDoctor))
				r.Put("/start", cfg.VisitsHandler.Start)
				r.Put("/add-treatment", cfg.VisitsHandler.AddTreatment)
				r.Put("/notes", cfg.VisitsHandler.UpdateNotes)
				r.Put("/complete", cfg.VisitsHandler.Complete)
			})
		})

		if cfg.DashboardHandler != nil {
			api.With(httpmiddleware.RequireRole(users.RoleFinance)).Get("/dashboard/stats", cfg.DashboardHandler.Stats)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
