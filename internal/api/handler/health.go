package handler

import (
	"net/http"
	"time"

	"github.com/devfedhq/devboard/internal/api/response"
	"github.com/devfedhq/devboard/internal/cache"
	"github.com/devfedhq/devboard/internal/store"
)

// HealthHandler reports liveness of the service and its backing stores.
type HealthHandler struct {
	store store.Store
	cache cache.Cache
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(st store.Store, c cache.Cache) *HealthHandler {
	return &HealthHandler{store: st, cache: c}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := "ok"

	dbStatus := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		dbStatus = "unreachable"
		status = "degraded"
	}

	cacheStatus := "ok"
	if err := h.cache.Ping(r.Context()); err != nil {
		cacheStatus = "unreachable"
		status = "degraded"
	}

	response.JSON(w, map[string]any{
		"status":    status,
		"database":  dbStatus,
		"cache":     cacheStatus,
		"timestamp": time.Now().UTC(),
	})
}
