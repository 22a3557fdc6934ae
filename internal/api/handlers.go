// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tenantvault/internal/logging"
	"github.com/tomtom215/tenantvault/internal/models"
	"github.com/tomtom215/tenantvault/internal/validation"
)

const defaultListLimit = 50

// Store is the read side of the metadata store the handlers need.
type Store interface {
	Ping(ctx context.Context) error
	ListArtifacts(ctx context.Context, tenantID string, limit int) ([]models.BackupArtifact, error)
	ListRestores(ctx context.Context, tenantID string) ([]models.RestoreOperation, error)
}

// Handler serves the API routes.
type Handler struct {
	store     Store
	startedAt time.Time
}

// NewHandler creates a Handler backed by store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store, startedAt: time.Now()}
}

type healthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Error         string `json:"error,omitempty"`
}

// Healthz reports 200 when the metadata store answers, 503 otherwise.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := healthStatus{Status: "ok", UptimeSeconds: int64(time.Since(h.startedAt).Seconds())}
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Health check failed")
		status.Status = "unavailable"
		status.Error = "metadata store unreachable"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, &models.APIResponse{
		Status:   status.Status,
		Data:     status,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

type listRequest struct {
	TenantID string `json:"tenantID" validate:"required,identifier"`
	Limit    int    `json:"limit" validate:"min=1,max=500"`
}

// ListBackups returns a tenant's artifacts, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, ok := parseList(w, r)
	if !ok {
		return
	}

	artifacts, err := h.store.ListArtifacts(r.Context(), req.TenantID, req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list backups", err)
		return
	}
	respondData(w, start, len(artifacts), artifacts)
}

// ListRestores returns a tenant's restore operations, newest first.
func (h *Handler) ListRestores(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, ok := parseList(w, r)
	if !ok {
		return
	}

	ops, err := h.store.ListRestores(r.Context(), req.TenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list restores", err)
		return
	}
	if len(ops) > req.Limit {
		ops = ops[:req.Limit]
	}
	respondData(w, start, len(ops), ops)
}

func parseList(w http.ResponseWriter, r *http.Request) (listRequest, bool) {
	req := listRequest{TenantID: chi.URLParam(r, "tenantID"), Limit: defaultListLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
			return req, false
		}
		req.Limit = n
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return req, false
	}
	return req, true
}
