package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/ibhelm/service-agent/internal/api/middleware"
	"github.com/ibhelm/service-agent/internal/api/request"
	"github.com/ibhelm/service-agent/internal/api/response"
	"github.com/ibhelm/service-agent/internal/config"
	"github.com/ibhelm/service-agent/internal/supabase"
)

type ConfigHandler struct {
	store      ConfigStore
	services   map[string]config.Service
	categories []string
	logger     zerolog.Logger
}

func NewConfig(store ConfigStore, cfg *config.Config, logger zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{
		store:      store,
		services:   cfg.Services,
		categories: cfg.Categories,
		logger:     logger,
	}
}

// MaskSecret hides a secret value for display. Values of three runes or
// fewer are masked entirely; longer values keep their last three runes
// as a recognition hint.
func MaskSecret(value string) string {
	const mask = "••••••"
	r := []rune(value)
	if len(r) <= 3 {
		return mask
	}
	return mask + string(r[len(r)-3:])
}

// Effective serves the raw key/value configuration a service reads at
// startup. This is the one unauthenticated configuration endpoint; it
// is never masked.
func (h *ConfigHandler) Effective(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "name")
	if _, ok := h.services[service]; !ok {
		response.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown service: %s", service))
		return
	}

	cfg, err := h.store.GetServiceConfig(r.Context(), service)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, cfg)
}

// List returns every entry with secret values masked.
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.GetAll(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	for i := range entries {
		if entries[i].IsSecret {
			entries[i].Value = MaskSecret(entries[i].Value)
		}
	}
	response.WriteJSON(w, http.StatusOK, entries)
}

type createConfigRequest struct {
	Key         string   `json:"key" validate:"required,configkey"`
	Value       string   `json:"value"`
	Scope       []string `json:"scope" validate:"required,min=1"`
	IsSecret    bool     `json:"is_secret"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
}

func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConfigRequest
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.store.Upsert(r.Context(), supabase.UpsertParams{
		Key:         req.Key,
		Value:       req.Value,
		Scope:       req.Scope,
		IsSecret:    req.IsSecret,
		Category:    req.Category,
		Description: req.Description,
		UpdatedBy:   actorEmail(r),
	})
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.audit(r, "create", req.Key, "Created config: "+req.Key)
	h.logger.Info().Str("key", req.Key).Msg("configuration entry created")
	response.WriteJSON(w, http.StatusCreated, masked(entry))
}

type updateConfigRequest struct {
	Value       *string  `json:"value"`
	Scope       []string `json:"scope" validate:"omitempty,min=1"`
	IsSecret    *bool    `json:"is_secret"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
}

// Update merges the provided fields into an existing entry. Absent
// fields keep their stored values.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")

	existing, err := h.store.GetByKey(r.Context(), key)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if existing == nil {
		response.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown configuration key: %s", key))
		return
	}

	var req updateConfigRequest
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := supabase.UpsertParams{
		Key:         key,
		Value:       existing.Value,
		Scope:       existing.Scope,
		IsSecret:    existing.IsSecret,
		Category:    existing.Category,
		Description: existing.Description,
		UpdatedBy:   actorEmail(r),
	}
	if req.Value != nil {
		params.Value = *req.Value
	}
	if req.Scope != nil {
		params.Scope = req.Scope
	}
	if req.IsSecret != nil {
		params.IsSecret = *req.IsSecret
	}
	if req.Category != nil {
		params.Category = req.Category
	}
	if req.Description != nil {
		params.Description = req.Description
	}

	entry, err := h.store.Upsert(r.Context(), params)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.audit(r, "update", key, "Updated config: "+key)
	h.logger.Info().Str("key", key).Msg("configuration entry updated")
	response.WriteJSON(w, http.StatusOK, masked(entry))
}

func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")

	existing, err := h.store.GetByKey(r.Context(), key)
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if existing == nil {
		response.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown configuration key: %s", key))
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.audit(r, "delete", key, "Deleted config: "+key)
	h.logger.Info().Str("key", key).Msg("configuration entry deleted")
	response.WriteJSON(w, http.StatusOK, map[string]string{"deleted": key})
}

func (h *ConfigHandler) Categories(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string][]string{"categories": h.categories})
}

// audit records a config mutation. Values never reach the audit trail,
// only the key; a failed write never fails the mutation.
func (h *ConfigHandler) audit(r *http.Request, op, key, message string) {
	entry := supabase.Operation{
		Service:   "config",
		Operation: op,
		Success:   true,
		Message:   message,
	}
	if claims := mw.GetClaims(r.Context()); claims != nil {
		entry.UserID = claims.Sub
		entry.UserEmail = claims.Email
	}
	if err := h.store.LogOperation(r.Context(), entry); err != nil {
		h.logger.Warn().Err(err).Str("key", key).Str("operation", op).Msg("audit write failed")
	}
}

func masked(entry *supabase.ConfigEntry) *supabase.ConfigEntry {
	if entry.IsSecret {
		e := *entry
		e.Value = MaskSecret(e.Value)
		return &e
	}
	return entry
}

func actorEmail(r *http.Request) string {
	if claims := mw.GetClaims(r.Context()); claims != nil {
		return claims.Email
	}
	return ""
}
