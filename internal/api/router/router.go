// Package router assembles the HTTP surface: public patient endpoints and
// JWT-guarded staff endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ottoferraz/clinic-scheduler/internal/audit"
	"github.com/ottoferraz/clinic-scheduler/internal/escalation"
	httpmiddleware "github.com/ottoferraz/clinic-scheduler/internal/http/middleware"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// staffRoles are the role claims admitted to the staff surface.
var staffRoles = []string{"admin", "receptionist"}

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Appointments   *scheduling.Handler
	Escalations    *escalation.Handler
	Audit          *audit.Handler
	MetricsHandler http.Handler
	StaffJWTSecret string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics and the patient-facing booking API.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Appointments != nil {
			public.Route("/api/appointments", func(r chi.Router) {
				r.Post("/", cfg.Appointments.Book)
				r.Get("/", cfg.Appointments.ListForPatient)
				r.Get("/availability", cfg.Appointments.Availability)
				r.Get("/{id}", cfg.Appointments.Get)
				r.Post("/{id}/reschedule", cfg.Appointments.Reschedule)
				r.Post("/{id}/cancel", cfg.Appointments.Cancel)
			})
		}
	})

	// Staff endpoints, guarded by JWT when a secret is configured.
	if cfg.StaffJWTSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))
			admin.Use(httpmiddleware.RequireRole(staffRoles...))
			if cfg.Appointments != nil {
				admin.Post("/appointments/{id}/status", cfg.Appointments.UpdateStatus)
			}
			if cfg.Escalations != nil {
				admin.Mount("/escalations", cfg.Escalations.Routes())
			}
			if cfg.Audit != nil {
				admin.Mount("/audit", cfg.Audit.Routes())
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
