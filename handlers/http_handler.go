// Package handlers provides the HTTP request handlers for the clinic
// server: authentication, patients, the herb and formula catalog, the
// prescription engine, charts, surveys, medications and data export.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/haniwon/clinic-server/auth"
	"github.com/haniwon/clinic-server/interfaces"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/store"
)

// CatalogRebuilder triggers a catalog rebuild after a catalog mutation.
// *scheduler.Scheduler satisfies it.
type CatalogRebuilder interface {
	RebuildCatalog(ctx context.Context) error
}

// Handler carries the injected dependencies shared by all endpoints.
type Handler struct {
	catalog   interfaces.CatalogStore
	db        *store.Store
	validator interfaces.DataValidator
	sessions  *auth.Service
	checker   interfaces.HealthChecker
	rebuilder CatalogRebuilder
}

// NewHandler creates the handler set with injected dependencies.
func NewHandler(
	catalog interfaces.CatalogStore,
	db *store.Store,
	validator interfaces.DataValidator,
	sessions *auth.Service,
	checker interfaces.HealthChecker,
	rebuilder CatalogRebuilder,
) *Handler {
	return &Handler{
		catalog:   catalog,
		db:        db,
		validator: validator,
		sessions:  sessions,
		checker:   checker,
		rebuilder: rebuilder,
	}
}

// RespondWithJSON writes a JSON response.
func (h *Handler) RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response.
func (h *Handler) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// storeError maps store errors to HTTP responses.
func (h *Handler) storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	if err == store.ErrNotFound {
		h.RespondWithError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	logging.Error("Store operation failed", "error", err)
	h.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
}

// HealthResponse fixes the JSON field ordering of the health payload.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Uptime  string                 `json:"uptime"`
	Details map[string]interface{} `json:"details"`
	System  map[string]interface{} `json:"system"`
}

// HealthCheck serves GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.checker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	detailMap := make(map[string]interface{}, len(details))
	for k, v := range details {
		detailMap[k] = v
	}

	response := HealthResponse{
		Status:  status,
		Uptime:  formatUptimeHuman(time.Since(h.catalog.GetServerStartTime())),
		Details: detailMap,
		System: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}

// formatUptimeHuman formats duration into a human-readable string.
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// triggerRebuild refreshes the in-memory catalog after a catalog mutation.
func (h *Handler) triggerRebuild(ctx context.Context) {
	if h.rebuilder == nil {
		return
	}
	if err := h.rebuilder.RebuildCatalog(ctx); err != nil {
		logging.Error("Catalog rebuild after mutation failed", "error", err)
	}
}
