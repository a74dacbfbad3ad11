package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/ibhelm/service-agent/internal/api/middleware"
	"github.com/ibhelm/service-agent/internal/api/response"
	"github.com/ibhelm/service-agent/internal/config"
	"github.com/ibhelm/service-agent/internal/docker"
	"github.com/ibhelm/service-agent/internal/supabase"
)

// ServiceManager drives container status reads and compose lifecycle
// operations for the registered services.
type ServiceManager interface {
	AllStatuses(ctx context.Context) []docker.ServiceStatus
	ServiceStatus(ctx context.Context, name string) docker.ServiceStatus
	Logs(ctx context.Context, name string, lines int, containerName string) string
	Start(ctx context.Context, name string, env map[string]string) (bool, string)
	Stop(ctx context.Context, name string) (bool, string)
	Restart(ctx context.Context, name string, env map[string]string) (bool, string)
	Update(ctx context.Context, name string) (bool, string)
}

// ConfigStore is the configuration and audit backend.
type ConfigStore interface {
	GetServiceConfig(ctx context.Context, service string) (map[string]string, error)
	GetAll(ctx context.Context) ([]supabase.ConfigEntry, error)
	GetByKey(ctx context.Context, key string) (*supabase.ConfigEntry, error)
	Upsert(ctx context.Context, p supabase.UpsertParams) (*supabase.ConfigEntry, error)
	Delete(ctx context.Context, key string) error
	LogOperation(ctx context.Context, op supabase.Operation) error
}

// OperationResult is the outcome of a lifecycle operation. A failed
// operation is still a successful HTTP exchange; Success carries the
// verdict.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Service struct {
	manager  ServiceManager
	store    ConfigStore
	services map[string]config.Service
	logger   zerolog.Logger
}

func NewService(manager ServiceManager, store ConfigStore, cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		manager:  manager,
		store:    store,
		services: cfg.Services,
		logger:   logger,
	}
}

func (h *Service) List(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.manager.AllStatuses(r.Context()))
}

func (h *Service) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.known(w, name) {
		return
	}
	response.WriteJSON(w, http.StatusOK, h.manager.ServiceStatus(r.Context(), name))
}

const (
	defaultLogLines = 100
	maxLogLines     = 1000
)

func (h *Service) Logs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.known(w, name) {
		return
	}

	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLogLines {
			response.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("lines must be between 1 and %d", maxLogLines))
			return
		}
		lines = n
	}

	logs := h.manager.Logs(r.Context(), name, lines, r.URL.Query().Get("container"))
	response.WriteJSON(w, http.StatusOK, map[string]string{"logs": logs})
}

func (h *Service) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "start", func(ctx context.Context, name string, env map[string]string) (bool, string) {
		return h.manager.Start(ctx, name, env)
	})
}

func (h *Service) Stop(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "stop", func(ctx context.Context, name string, _ map[string]string) (bool, string) {
		return h.manager.Stop(ctx, name)
	})
}

func (h *Service) Restart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "restart", func(ctx context.Context, name string, env map[string]string) (bool, string) {
		return h.manager.Restart(ctx, name, env)
	})
}

func (h *Service) Update(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "update", func(ctx context.Context, name string, _ map[string]string) (bool, string) {
		return h.manager.Update(ctx, name)
	})
}

// lifecycle runs one compose operation: resolve the service, inject its
// effective configuration where the operation recreates containers,
// record the outcome in the audit log, and report the result.
func (h *Service) lifecycle(w http.ResponseWriter, r *http.Request, op string, run func(context.Context, string, map[string]string) (bool, string)) {
	name := chi.URLParam(r, "name")
	if !h.known(w, name) {
		return
	}
	ctx := r.Context()

	var env map[string]string
	if op == "start" || op == "restart" {
		cfg, err := h.store.GetServiceConfig(ctx, name)
		if err != nil {
			response.WriteError(w, http.StatusBadGateway, "fetch service config: "+err.Error())
			return
		}
		env = cfg
	}

	ok, msg := run(ctx, name, env)
	h.audit(ctx, name, op, ok, msg)

	h.logger.Info().
		Str("service", name).
		Str("operation", op).
		Bool("success", ok).
		Msg("lifecycle operation")

	response.WriteJSON(w, http.StatusOK, OperationResult{Success: ok, Message: msg})
}

// audit records an operation outcome. The audit trail is best-effort;
// a failed write never fails the operation itself.
func (h *Service) audit(ctx context.Context, service, op string, success bool, message string) {
	entry := supabase.Operation{
		Service:   service,
		Operation: op,
		Success:   success,
		Message:   message,
	}
	if claims := mw.GetClaims(ctx); claims != nil {
		entry.UserID = claims.Sub
		entry.UserEmail = claims.Email
	}

	if err := h.store.LogOperation(ctx, entry); err != nil {
		h.logger.Warn().Err(err).
			Str("service", service).
			Str("operation", op).
			Msg("audit write failed")
	}
}

func (h *Service) known(w http.ResponseWriter, name string) bool {
	if _, ok := h.services[name]; !ok {
		response.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown service: %s", name))
		return false
	}
	return true
}
