// Package server provides HTTP server management and lifecycle handling for
// the clinic API. It includes server setup, middleware configuration, route
// management, and graceful shutdown capabilities with proper error handling
// and logging.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haniwon/clinic-server/auth"
	"github.com/haniwon/clinic-server/config"
	"github.com/haniwon/clinic-server/handlers"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/metrics"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	handler *handlers.Handler
	config  *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, handler *handlers.Handler) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		handler: handler,
		config:  cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	logger := slog.Default()
	if logging.DefaultLoggingService != nil && logging.DefaultLoggingService.Logger != nil {
		logger = logging.DefaultLoggingService.Logger
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logger))
	s.router.Use(metrics.Metrics)
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	// Unauthenticated surface: liveness, metrics, login and the tokenized
	// patient survey links.
	s.router.Get("/health", h.HealthCheck)
	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)
	s.router.Post("/api/auth/login", h.Login)
	s.router.Get("/survey/{token}", h.GetPublicSurveySession)
	s.router.Post("/survey/{token}", h.SubmitSurveyResponse)

	// Everything else requires a staff session.
	s.router.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/api/auth/logout", h.Logout)
		r.Get("/api/auth/me", h.CurrentAccount)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/api/staff", h.CreateStaffAccount)
			r.Get("/api/staff", h.ListStaffAccounts)
			r.Put("/api/staff/{id}/active", h.SetStaffActive)
			r.Post("/api/catalog/rebuild", h.RebuildCatalog)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.PatientsRead }))
			r.Get("/api/patients", h.ListPatients)
			r.Get("/api/patients/{id}", h.GetPatient)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.PatientsWrite }))
			r.Post("/api/patients", h.CreatePatient)
			r.Put("/api/patients/{id}", h.UpdatePatient)
			r.Delete("/api/patients/{id}", h.DeletePatient)
		})

		// The herb and formula catalog is readable by anyone logged in;
		// mutations are prescription-level writes.
		r.Get("/api/herbs", h.ListHerbs)
		r.Get("/api/formulas", h.ListFormulaTemplates)
		r.Get("/api/formulas/definitions", h.ListFormulaDefinitions)
		r.Get("/api/formulas/definitions/{name}", h.GetFormulaDefinition)
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.PrescriptionsWrite }))
			r.Put("/api/herbs", h.UpsertHerb)
			r.Put("/api/formulas/definitions", h.SaveFormulaDefinition)
			r.Delete("/api/formulas/definitions/{name}", h.DeleteFormulaDefinition)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.PrescriptionsRead }))
			r.Post("/api/formulas/preview", h.PreviewFormula)
			r.Get("/api/patients/{id}/prescriptions", h.ListPrescriptions)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.PrescriptionsWrite }))
			r.Post("/api/patients/{id}/prescriptions", h.CreatePrescription)
			r.Delete("/api/prescriptions/{id}", h.DeletePrescription)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.ChartsRead }))
			r.Get("/api/patients/{id}/charts", h.ListInitialCharts)
			r.Get("/api/patients/{id}/notes", h.ListProgressNotes)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.ChartsWrite }))
			r.Post("/api/patients/{id}/charts", h.CreateInitialChart)
			r.Put("/api/charts/{id}", h.UpdateInitialChart)
			r.Delete("/api/charts/{id}", h.DeleteInitialChart)
			r.Post("/api/patients/{id}/notes", h.CreateProgressNote)
			r.Delete("/api/notes/{id}", h.DeleteProgressNote)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.SurveyRead }))
			r.Get("/api/surveys/templates", h.ListSurveyTemplates)
			r.Get("/api/surveys/templates/{id}", h.GetSurveyTemplate)
			r.Get("/api/surveys/responses", h.ListSurveyResponses)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.SurveyWrite }))
			r.Put("/api/surveys/templates", h.SaveSurveyTemplate)
			r.Delete("/api/surveys/templates/{id}", h.DeleteSurveyTemplate)
			r.Post("/api/surveys/sessions", h.CreateSurveySession)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.MedicationsRead }))
			r.Get("/api/patients/{id}/medications", h.ListMedicationSchedules)
			r.Get("/api/patients/{id}/medications/stats", h.MedicationStats)
			r.Get("/api/medications/{id}/logs", h.ListMedicationLogs)
			r.Get("/api/notifications", h.ListNotifications)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.MedicationsWrite }))
			r.Post("/api/patients/{id}/medications", h.CreateMedicationSchedule)
			r.Post("/api/medications/{id}/logs", h.CreateMedicationLog)
			r.Put("/api/notifications/{id}/read", h.MarkNotificationRead)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequirePermission(func(p auth.Permissions) bool { return p.SettingsRead }))
			r.Get("/api/settings", h.GetClinicSettings)
			r.Get("/api/export", h.ExportAll)
			r.Get("/api/export/{id}", h.ExportPatient)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Put("/api/settings", h.SaveClinicSettings)
		})
	})
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == "dev" {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		fmt.Println("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			fmt.Println("Profiling server failed: ", err)
		}
	}()
}
