package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/haniwon/clinic-server/auth"
	"github.com/haniwon/clinic-server/config"
	"github.com/haniwon/clinic-server/data"
	"github.com/haniwon/clinic-server/handlers"
	"github.com/haniwon/clinic-server/health"
	"github.com/haniwon/clinic-server/store"
	"github.com/haniwon/clinic-server/validation"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *auth.Service) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "server-test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := data.NewCatalogContainer()
	sessions, err := auth.NewService("server-test-secret-0123456789")
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}

	handler := handlers.NewHandler(catalog, db, validation.NewValidator(), sessions,
		health.NewHealthChecker(catalog, db), nil)

	cfg := &config.Config{
		Port:           "8000",
		Address:        "127.0.0.1",
		Env:            "test",
		CORSOrigins:    []string{"http://localhost:*"},
		MaxRequestBody: 1 << 20,
		MaxHeaderSize:  1 << 20,
	}

	return NewServer(cfg, handler), db, sessions
}

func TestPublicRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	testCases := []struct {
		method   string
		path     string
		expected int
	}{
		{http.MethodGet, "/health", http.StatusServiceUnavailable}, // catalog is empty
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/survey/notoken1", http.StatusNotFound},
		{http.MethodGet, "/no/such/route", http.StatusNotFound},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.RemoteAddr = "192.168.1.10:4000"
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)

		if w.Code != tc.expected {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.expected, w.Code)
		}
	}
}

func TestAPIRequiresSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	paths := []string{
		"/api/patients",
		"/api/herbs",
		"/api/formulas",
		"/api/settings",
		"/api/staff",
		"/api/notifications",
	}

	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.168.1.11:4000"
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestStaffCannotReachAdminRoutes(t *testing.T) {
	srv, db, sessions := newTestServer(t)

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	account := &store.StaffAccount{
		Username:     "staff",
		DisplayName:  "staff",
		PasswordHash: hash,
		Role:         auth.RoleStaff,
		IsActive:     true,
	}
	if err := db.CreateStaffAccount(t.Context(), account); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	token, err := sessions.IssueToken(account.ID, account.Username, account.Role)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/staff", nil)
	req.RemoteAddr = "192.168.1.12:4000"
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for staff on /api/staff, got %d", w.Code)
	}

	// The same session works fine on regular routes.
	req = httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.RemoteAddr = "192.168.1.12:4000"
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for staff on /api/patients, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/patients", nil)
	req.RemoteAddr = "192.168.1.13:4000"
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers on preflight response")
	}
}
