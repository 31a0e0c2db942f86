// Package health provides health checking for the clinic server.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/haniwon/clinic-server/interfaces"
)

// Pinger reports database connectivity. *store.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface.
type HealthCheckerImpl struct {
	catalog interfaces.CatalogStore
	db      Pinger
}

var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// NewHealthChecker creates a new health checker with injected dependencies.
func NewHealthChecker(catalog interfaces.CatalogStore, db Pinger) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		catalog: catalog,
		db:      db,
	}
}

// HealthCheck returns the health status served by the /health endpoint.
// The catalog rebuilds hourly, so a stale catalog means the scheduler
// stopped running long before users notice anything else.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dbErr := h.db.Ping(ctx)

	herbs := h.catalog.GetHerbs()
	templates := h.catalog.GetTemplates()
	lastRebuild := h.catalog.GetLastUpdated()
	isUpdating := h.catalog.IsUpdating()

	catalogAge := time.Since(lastRebuild)

	switch {
	case dbErr != nil:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case len(herbs) == 0 || len(templates) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case catalogAge > 24*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case catalogAge > 3*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	database := "ok"
	if dbErr != nil {
		database = dbErr.Error()
	}

	data = map[string]any{
		"database":          database,
		"last_rebuild":      lastRebuild.Format(time.RFC3339),
		"catalog_age_hours": math.Round(catalogAge.Hours()*10) / 10,
		"herbs":             len(herbs),
		"templates":         len(templates),
		"is_updating":       isUpdating,
		"uptime_hours":      math.Round(time.Since(h.catalog.GetServerStartTime()).Hours()*10) / 10,
	}

	return status, data, httpStatus
}
