// Package api wires the HTTP surface: routing, middleware, and the
// handlers for service lifecycle and configuration administration.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ibhelm/service-agent/internal/api/handler"
	mw "github.com/ibhelm/service-agent/internal/api/middleware"
	"github.com/ibhelm/service-agent/internal/api/response"
	"github.com/ibhelm/service-agent/internal/auth"
	"github.com/ibhelm/service-agent/internal/config"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	verifier *auth.Verifier
	services *handler.Service
	configs  *handler.ConfigHandler
}

func NewServer(logger zerolog.Logger, manager handler.ServiceManager, store handler.ConfigStore, verifier *auth.Verifier, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		verifier: verifier,
		services: handler.NewService(manager, store, cfg, logger),
		configs:  handler.NewConfig(store, cfg, logger),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	s.router.Get("/health", s.handleHealth)

	// Service bootstrap config. Unauthenticated so containers can fetch
	// their configuration before any identity exists.
	s.router.Get("/config/{name}", s.configs.Effective)

	// Read-only status endpoints for any authenticated user.
	s.router.Group(func(r chi.Router) {
		r.Use(mw.Auth(s.verifier))

		r.Get("/services", s.services.List)
		r.Get("/services/{name}", s.services.Get)
		r.Get("/services/{name}/logs", s.services.Logs)
	})

	// Lifecycle operations and configuration administration.
	s.router.Group(func(r chi.Router) {
		r.Use(mw.Auth(s.verifier))
		r.Use(mw.RequireAdmin)

		r.Post("/services/{name}/start", s.services.Start)
		r.Post("/services/{name}/stop", s.services.Stop)
		r.Post("/services/{name}/restart", s.services.Restart)
		r.Post("/services/{name}/update", s.services.Update)

		r.Get("/config", s.configs.List)
		r.Post("/config", s.configs.Create)
		r.Get("/config/categories", s.configs.Categories)
		r.Put("/config/{name}", s.configs.Update)
		r.Delete("/config/{name}", s.configs.Delete)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
