package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/openfleet/maestro/internal/api/handler"
	mw "github.com/openfleet/maestro/internal/api/middleware"
	"github.com/openfleet/maestro/internal/config"
	"github.com/openfleet/maestro/internal/core"
	"github.com/openfleet/maestro/internal/dispatch"
	"github.com/openfleet/maestro/internal/model"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	dispatcher     *dispatch.Dispatcher
	corePool       *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	services := core.NewServices(pool, cfg.SecretKeyBase64)
	dispatcher := dispatch.New(pool, temporalClient, cfg, logger)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		dispatcher:     dispatcher,
		corePool:       pool,
		temporalClient: temporalClient,
		cfg:            cfg,
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

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.services.APIKey))

		// Every authenticated key can read. Mutations are gated below:
		// operators dispatch updates and manage schedules, admins manage
		// inventory, vCenters, firmware, and API keys.

		// Dashboard
		dashboard := handler.NewDashboard(s.services.Dashboard)
		r.Get("/dashboard/stats", dashboard.Stats)

		// Hosts
		host := handler.NewHost(s.services.Host, s.services.Task, s.dispatcher)
		r.Get("/hosts", host.List)
		r.Get("/hosts/{id}", host.Get)
		r.Get("/hosts/{id}/tasks", host.Tasks)
		r.With(mw.RequireRole(model.RoleAdmin)).Post("/hosts", host.Create)
		r.With(mw.RequireRole(model.RoleAdmin)).Put("/hosts/{id}", host.Update)
		r.With(mw.RequireRole(model.RoleAdmin)).Delete("/hosts/{id}", host.Delete)
		r.With(mw.RequireRole(model.RoleOperator)).Post("/hosts/{id}/update", host.DispatchUpdate)
		r.With(mw.RequireRole(model.RoleOperator)).Post("/update-jobs", host.DispatchBatch)

		// Groups
		group := handler.NewGroup(s.services.Group)
		r.Get("/groups", group.List)
		r.Get("/groups/{id}", group.Get)
		r.With(mw.RequireRole(model.RoleAdmin)).Post("/groups", group.Create)
		r.With(mw.RequireRole(model.RoleAdmin)).Put("/groups/{id}/members", group.SetMembers)
		r.With(mw.RequireRole(model.RoleAdmin)).Delete("/groups/{id}", group.Delete)

		// Schedules
		schedule := handler.NewSchedule(s.services.Schedule, s.dispatcher)
		r.Get("/schedules", schedule.List)
		r.Get("/schedules/{id}", schedule.Get)
		r.With(mw.RequireRole(model.RoleOperator)).Post("/schedules", schedule.Create)
		r.With(mw.RequireRole(model.RoleOperator)).Put("/schedules/{id}", schedule.Update)
		r.With(mw.RequireRole(model.RoleOperator)).Post("/schedules/{id}/toggle", schedule.Toggle)
		r.With(mw.RequireRole(model.RoleOperator)).Post("/schedules/{id}/run", schedule.Run)
		r.With(mw.RequireRole(model.RoleOperator)).Delete("/schedules/{id}", schedule.Delete)

		// Jobs
		job := handler.NewJob(s.services.Job)
		r.Get("/jobs", job.List)
		r.Get("/jobs/{id}", job.Get)

		// Tasks
		task := handler.NewTask(s.services.Task)
		r.Get("/tasks", task.List)
		r.Get("/tasks/{id}", task.Get)

		// Firmware images
		firmware := handler.NewFirmwareImage(s.services.FirmwareImage)
		r.Get("/firmware-images", firmware.List)
		r.Get("/firmware-images/{id}", firmware.Get)
		r.With(mw.RequireRole(model.RoleAdmin)).Post("/firmware-images", firmware.Create)
		r.With(mw.RequireRole(model.RoleAdmin)).Delete("/firmware-images/{id}", firmware.Delete)

		// vCenters
		vcenter := handler.NewVCenter(s.services.VCenter)
		r.Get("/vcenters", vcenter.List)
		r.Get("/vcenters/{id}", vcenter.Get)
		r.With(mw.RequireRole(model.RoleAdmin)).Post("/vcenters", vcenter.Create)
		r.With(mw.RequireRole(model.RoleAdmin)).Delete("/vcenters/{id}", vcenter.Delete)

		// API keys
		apiKey := handler.NewAPIKey(s.services.APIKey)
		r.With(mw.RequireRole(model.RoleAdmin)).Get("/api-keys", apiKey.List)
		r.With(mw.RequireRole(model.RoleAdmin)).Post("/api-keys", apiKey.Create)
		r.With(mw.RequireRole(model.RoleAdmin)).Delete("/api-keys/{id}", apiKey.Revoke)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.corePool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
