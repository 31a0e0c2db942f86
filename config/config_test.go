package config

import (
	"os"
	"strings"
	"testing"
)

func cleanupEnv(t *testing.T) {
	t.Helper()
	for _, key := range GetEnvVars() {
		_ = os.Unsetenv(key)
	}
}

func TestLoadValidConfig(t *testing.T) {
	cleanupEnv(t)
	_ = os.Setenv("PORT", "8002")
	_ = os.Setenv("ADDRESS", "127.0.0.1")
	_ = os.Setenv("ENV", "dev")
	_ = os.Setenv("DB_PATH", "/tmp/clinic-test.db")
	_ = os.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	_ = os.Setenv("LOG_LEVEL", "info")
	defer cleanupEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8002" {
		t.Errorf("Expected port 8002, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.DBPath != "/tmp/clinic-test.db" {
		t.Errorf("Expected db path /tmp/clinic-test.db, got %s", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level info, got %s", cfg.LogLevel)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cleanupEnv(t)
	defer cleanupEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected default address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.Env != "dev" {
		t.Errorf("Expected default env dev, got %s", cfg.Env)
	}
	if cfg.DBPath != "clinic.db" {
		t.Errorf("Expected default db path clinic.db, got %s", cfg.DBPath)
	}
	if cfg.LogDir != "logs" {
		t.Errorf("Expected default log dir logs, got %s", cfg.LogDir)
	}
	if cfg.AdminUsername != "admin" {
		t.Errorf("Expected default admin username admin, got %s", cfg.AdminUsername)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:*" {
		t.Errorf("Expected default CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestInvalidPort(t *testing.T) {
	testCases := []struct {
		port     string
		expected string
	}{
		{"abc", "PORT must be a valid number"},
		{"0", "PORT must be between 1 and 65535"},
		{"65536", "PORT must be between 1 and 65535"},
		{"80", "PORT 80 is privileged"},
	}

	for _, tc := range testCases {
		cleanupEnv(t)
		_ = os.Setenv("PORT", tc.port)

		_, err := Load()
		if err == nil {
			t.Errorf("Expected error for PORT=%s", tc.port)
			continue
		}
		if !strings.Contains(err.Error(), tc.expected) {
			t.Errorf("Expected error containing %q for PORT=%s, got %v", tc.expected, tc.port, err)
		}
	}
	cleanupEnv(t)
}

func TestInvalidAddress(t *testing.T) {
	testCases := []string{"not-an-ip", "8.8.8.8"}

	for _, address := range testCases {
		cleanupEnv(t)
		_ = os.Setenv("ADDRESS", address)

		if _, err := Load(); err == nil {
			t.Errorf("Expected error for ADDRESS=%s", address)
		}
	}
	cleanupEnv(t)
}

func TestBindAllInterfacesAllowed(t *testing.T) {
	cleanupEnv(t)
	_ = os.Setenv("ADDRESS", "0.0.0.0")
	defer cleanupEnv(t)

	if _, err := Load(); err != nil {
		t.Errorf("Expected 0.0.0.0 to be accepted, got %v", err)
	}
}

func TestSessionSecretRequiredInProd(t *testing.T) {
	cleanupEnv(t)
	_ = os.Setenv("ENV", "prod")
	defer cleanupEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Errorf("Expected SESSION_SECRET error in prod, got %v", err)
	}

	_ = os.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err != nil {
		t.Errorf("Expected no error with secret set, got %v", err)
	}
}

func TestShortSessionSecretRejected(t *testing.T) {
	cleanupEnv(t)
	_ = os.Setenv("SESSION_SECRET", "short")
	defer cleanupEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "at least 16 characters") {
		t.Errorf("Expected short secret error, got %v", err)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	cleanupEnv(t)
	_ = os.Setenv("LOG_LEVEL", "verbose")
	defer cleanupEnv(t)

	if _, err := Load(); err == nil {
		t.Error("Expected error for LOG_LEVEL=verbose")
	}
}

func TestCORSOriginsParsing(t *testing.T) {
	cleanupEnv(t)
	_ = os.Setenv("CORS_ORIGINS", "http://192.168.0.10:3000, http://localhost:5173 ,")
	defer cleanupEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("Expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.CORSOrigins[1] != "http://localhost:5173" {
		t.Errorf("Expected trimmed origin, got %q", cfg.CORSOrigins[1])
	}
}

func TestSizeLimitValidation(t *testing.T) {
	testCases := []struct {
		key   string
		value string
	}{
		{"MAX_REQUEST_BODY", "-1"},
		{"MAX_HEADER_SIZE", "209715200"}, // over 100MB
		{"LOG_RETENTION_WEEKS", "100"},
		{"MAX_LOG_FILE_SIZE", "1024"}, // under 1MB
	}

	for _, tc := range testCases {
		cleanupEnv(t)
		_ = os.Setenv(tc.key, tc.value)

		if _, err := Load(); err == nil {
			t.Errorf("Expected error for %s=%s", tc.key, tc.value)
		}
	}
	cleanupEnv(t)
}
