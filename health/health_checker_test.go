package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/haniwon/clinic-server/formula"
)

// mockCatalogStore implements interfaces.CatalogStore for health tests.
type mockCatalogStore struct {
	herbs       []formula.HerbRecord
	templates   []formula.ResolvedTemplate
	lastUpdated time.Time
	updating    bool
	startTime   time.Time
}

func (m *mockCatalogStore) GetHerbs() []formula.HerbRecord            { return m.herbs }
func (m *mockCatalogStore) GetTemplates() []formula.ResolvedTemplate  { return m.templates }
func (m *mockCatalogStore) HerbID(name string) (int, bool)            { return 0, false }
func (m *mockCatalogStore) GetLastUpdated() time.Time                 { return m.lastUpdated }
func (m *mockCatalogStore) IsUpdating() bool                          { return m.updating }
func (m *mockCatalogStore) GetServerStartTime() time.Time             { return m.startTime }
func (m *mockCatalogStore) BeginUpdate() bool                         { return true }
func (m *mockCatalogStore) EndUpdate()                                {}
func (m *mockCatalogStore) UpdateCatalog(herbs []formula.HerbRecord, templates []formula.ResolvedTemplate) {
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

func freshCatalog() *mockCatalogStore {
	return &mockCatalogStore{
		herbs: []formula.HerbRecord{
			{ID: 1, Name: "시호"},
			{ID: 2, Name: "감초"},
		},
		templates: []formula.ResolvedTemplate{
			{Name: "소시호탕"},
		},
		lastUpdated: time.Now().Add(-1 * time.Hour),
		startTime:   time.Now().Add(-48 * time.Hour),
	}
}

func TestHealthCheckHealthy(t *testing.T) {
	checker := NewHealthChecker(freshCatalog(), &mockPinger{})

	status, details, httpStatus := checker.HealthCheck()

	if status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", status)
	}
	if httpStatus != http.StatusOK {
		t.Errorf("Expected HTTP %d, got %d", http.StatusOK, httpStatus)
	}

	if details["database"] != "ok" {
		t.Errorf("Expected database 'ok', got %v", details["database"])
	}
	if details["herbs"] != 2 {
		t.Errorf("Expected 2 herbs, got %v", details["herbs"])
	}
	if details["templates"] != 1 {
		t.Errorf("Expected 1 template, got %v", details["templates"])
	}
	if _, ok := details["catalog_age_hours"]; !ok {
		t.Error("Details should contain 'catalog_age_hours'")
	}
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	checker := NewHealthChecker(freshCatalog(), &mockPinger{err: errors.New("database is locked")})

	status, details, httpStatus := checker.HealthCheck()

	if status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", status)
	}
	if httpStatus != http.StatusServiceUnavailable {
		t.Errorf("Expected HTTP %d, got %d", http.StatusServiceUnavailable, httpStatus)
	}
	if details["database"] == "ok" {
		t.Error("Expected database detail to carry the error")
	}
}

func TestHealthCheckEmptyCatalog(t *testing.T) {
	catalog := freshCatalog()
	catalog.templates = nil

	checker := NewHealthChecker(catalog, &mockPinger{})

	status, _, httpStatus := checker.HealthCheck()

	if status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", status)
	}
	if httpStatus != http.StatusServiceUnavailable {
		t.Errorf("Expected HTTP %d, got %d", http.StatusServiceUnavailable, httpStatus)
	}
}

func TestHealthCheckStaleCatalog(t *testing.T) {
	tests := []struct {
		name       string
		age        time.Duration
		wantStatus string
	}{
		{"slightly stale", 5 * time.Hour, "degraded"},
		{"very stale", 30 * time.Hour, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := freshCatalog()
			catalog.lastUpdated = time.Now().Add(-tt.age)

			checker := NewHealthChecker(catalog, &mockPinger{})
			status, _, httpStatus := checker.HealthCheck()

			if status != tt.wantStatus {
				t.Errorf("Expected status '%s', got '%s'", tt.wantStatus, status)
			}
			if httpStatus != http.StatusServiceUnavailable {
				t.Errorf("Expected HTTP %d, got %d", http.StatusServiceUnavailable, httpStatus)
			}
		})
	}
}
